package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
)

// ReportIncident records a problem on the actor's task and tells the event coordinator.
func (s *Service) ReportIncident(ctx context.Context, actor policy.Actor, id uuid.UUID, description string, file *Upload) (*models.Incident, error) {
	t, ev, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWorkTask(actor, ev, t) {
		return nil, apperr.ErrForbidden
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Invalid("description", "is required")
	}
	if err := validateUpload(file); err != nil {
		return nil, err
	}
	inc := &models.Incident{ID: uuid.New(), TaskID: t.ID, ReportedBy: actor.UserID, Description: strings.TrimSpace(description)}
	if inc.FileKey, inc.FileName, err = s.putFile(ctx, t.ID, "incidents", inc.ID, file); err != nil {
		return nil, err
	}
	if err := s.store.CreateIncident(ctx, inc); err != nil {
		s.dropFile(ctx, inc.FileKey)
		return nil, fmt.Errorf("save incident: %w", err)
	}
	inc.FileURL = s.fileURL(ctx, inc.FileKey)

	s.logger.Info("incident reported", zap.String("incident_id", inc.ID.String()), zap.String("task_id", t.ID.String()))
	s.notifier.Notify(ctx, notifications.Message{
		UserID: ev.CoordinatorID,
		Type:   models.NotifyIncidentReported,
		Title:  "Incident reported",
		Body:   fmt.Sprintf("An incident was reported on the task %q.", t.Title),
		Data:   map[string]interface{}{"incident_id": inc.ID, "task_id": t.ID, "event_id": t.EventID},
		Email:  true,
	})
	return inc, nil
}

// Incidents lists a task's incidents with signed file links.
func (s *Service) Incidents(ctx context.Context, actor policy.Actor, id uuid.UUID) ([]models.Incident, error) {
	t, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListIncidents(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].FileURL = s.fileURL(ctx, list[i].FileKey)
	}
	return list, nil
}

// ResolveInput closes an incident. Remediation, when set, becomes a new task of the same event.
type ResolveInput struct {
	Resolution  string
	Remediation *Input
}

// ResolveIncident resolves an incident, optionally creating and linking a remediation task.
func (s *Service) ResolveIncident(ctx context.Context, actor policy.Actor, incidentID uuid.UUID, in ResolveInput) (*models.Incident, error) {
	inc, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	t, ev, err := s.load(ctx, actor, inc.TaskID)
	if err != nil {
		return nil, err
	}
	if !policy.CanResolveIncident(actor, ev) {
		return nil, apperr.ErrForbidden
	}
	if inc.Status == models.IncidentResolved {
		return nil, ErrIncidentResolved
	}

	var remediation *models.Task
	if in.Remediation != nil {
		if ev.IsFinished() {
			return nil, ErrEventFinished
		}
		if verr := validateTask(in.Remediation.Title, in.Remediation.DueDate); verr.HasErrors() {
			return nil, verr
		}
		committeeID := in.Remediation.CommitteeID
		if committeeID == nil {
			committeeID = t.CommitteeID
		}
		if err := s.checkCommittee(ctx, committeeID, ev); err != nil {
			return nil, err
		}
		remediation = &models.Task{
			EventID:     ev.ID,
			CommitteeID: committeeID,
			Title:       strings.TrimSpace(in.Remediation.Title),
			Description: in.Remediation.Description,
			DueDate:     in.Remediation.DueDate,
			Status:      models.TaskPending,
			RiskLevel:   models.ComputeRisk(in.Remediation.DueDate, s.now()),
			CreatedBy:   actor.UserID,
		}
	}

	resolved, err := s.store.ResolveIncident(ctx, inc.ID, actor.UserID, strings.TrimSpace(in.Resolution), remediation, s.now())
	if err != nil {
		return nil, err
	}
	resolved.FileURL = s.fileURL(ctx, resolved.FileKey)

	data := map[string]interface{}{"incident_id": resolved.ID, "task_id": t.ID}
	if resolved.SolutionTaskID != nil {
		data["solution_task_id"] = *resolved.SolutionTaskID
	}
	s.notifier.Notify(ctx, notifications.Message{
		UserID: resolved.ReportedBy,
		Type:   models.NotifyIncidentResolved,
		Title:  "Incident resolved",
		Body:   fmt.Sprintf("Your incident on the task %q was resolved.", t.Title),
		Data:   data,
		Email:  true,
	})
	return resolved, nil
}
