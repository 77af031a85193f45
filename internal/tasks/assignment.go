package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

// Assign gives a task to target. Coordinators may assign any active user of the
// institution and reassign held tasks. Leaders may only claim an unassigned task of
// one of their committees, and the claim is a conditional update so two concurrent
// claims cannot both win.
func (s *Service) Assign(ctx context.Context, actor policy.Actor, id, target uuid.UUID) (*models.Task, error) {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	manager := policy.CanManageTasks(actor, ev)
	if manager {
		if err := s.checkAssignee(ctx, ev, target); err != nil {
			return nil, err
		}
	} else {
		isMember := false
		if t.CommitteeID != nil {
			if isMember, err = s.store.IsMember(ctx, *t.CommitteeID, actor.UserID); err != nil {
				return nil, err
			}
		}
		if !policy.ClaimEligible(actor, ev, t, target, isMember) {
			return nil, apperr.ErrForbidden
		}
		if t.AssignedTo != nil {
			return nil, ErrAlreadyAssigned
		}
	}
	if t.Status == models.TaskCompleted {
		return nil, ErrTaskCompleted
	}
	if ev.IsFinished() {
		return nil, ErrEventFinished
	}

	updated, err := s.store.Assign(ctx, t.ID, target, models.ComputeRisk(t.DueDate, s.now()), !manager)
	if err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}
	if updated == nil {
		if manager {
			return nil, ErrTaskCompleted
		}
		return nil, ErrAlreadyAssigned
	}
	s.logger.Info("task assigned",
		zap.String("task_id", t.ID.String()),
		zap.String("assignee_id", target.String()),
		zap.Bool("claim", !manager),
	)
	s.notifier.Notify(ctx, notifications.Message{
		UserID: target,
		Type:   models.NotifyTaskAssigned,
		Title:  "Task assigned",
		Body:   fmt.Sprintf("You have been assigned the task %q, due %s.", updated.Title, updated.DueDate.Format("2006-01-02")),
		Data:   map[string]interface{}{"task_id": updated.ID, "event_id": updated.EventID},
		Email:  true,
	})
	if s.alerter != nil {
		if _, err := s.alerter.AlertAssigned(ctx, updated); err != nil {
			s.logger.Warn("assignment alert failed", zap.String("task_id", updated.ID.String()), zap.Error(err))
		}
	}
	return updated, nil
}

func (s *Service) checkAssignee(ctx context.Context, ev *models.Event, target uuid.UUID) error {
	u, err := s.users.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("user_id", "must be an active user of the institution")
		}
		return err
	}
	if !u.IsActive || u.InstitutionID == nil || *u.InstitutionID != ev.InstitutionID {
		return apperr.Invalid("user_id", "must be an active user of the institution")
	}
	return nil
}

// Complete marks the actor's task completed and tells the event coordinator.
func (s *Service) Complete(ctx context.Context, actor policy.Actor, id uuid.UUID) (*models.Task, error) {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWorkTask(actor, ev, t) {
		return nil, apperr.ErrForbidden
	}
	if t.Status == models.TaskCompleted {
		return nil, ErrAlreadyCompleted
	}
	updated, err := s.store.Complete(ctx, t.ID, actor.UserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if updated == nil {
		return nil, ErrAlreadyCompleted
	}
	s.notifier.Notify(ctx, notifications.Message{
		UserID: ev.CoordinatorID,
		Type:   models.NotifyTaskCompleted,
		Title:  "Task completed",
		Body:   fmt.Sprintf("The task %q was completed.", updated.Title),
		Data:   map[string]interface{}{"task_id": updated.ID, "event_id": updated.EventID, "completed_by": actor.UserID},
		Email:  true,
	})
	return updated, nil
}

// ChangeStatus moves an assigned task between InProgress, Delayed and Paused.
func (s *Service) ChangeStatus(ctx context.Context, actor policy.Actor, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "must be one of: InProgress Delayed Paused")
	}
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageTasks(actor, ev) {
		return nil, apperr.ErrForbidden
	}
	switch {
	case status == models.TaskCompleted:
		return nil, apperr.Business("only the assignee can complete a task")
	case t.Status == models.TaskPending:
		return nil, apperr.Business("pending tasks start when they are assigned")
	case !t.Status.CanCoordinatorMoveTo(status):
		return nil, apperr.Business(fmt.Sprintf("cannot change task status from %s to %s", t.Status, status))
	}
	return s.store.SetStatus(ctx, t.ID, t.Status, status, models.ComputeRisk(t.DueDate, s.now()))
}
