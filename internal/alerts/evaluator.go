package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/notifications"
)

// TaskSource lists the tasks whose risk is tracked: assigned and not completed.
type TaskSource interface {
	ListOpenAssigned(ctx context.Context) ([]models.Task, error)
}

// RiskStore applies a recomputed risk level and its alert atomically.
type RiskStore interface {
	ApplyRisk(ctx context.Context, taskID uuid.UUID, from, to models.RiskLevel, alert *models.Alert) (bool, error)
	CreateAlert(ctx context.Context, a *models.Alert) error
}

// Evaluator recomputes task risk levels and alerts assignees when a level escalates.
type Evaluator struct {
	tasks    TaskSource
	store    RiskStore
	notifier notifications.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewEvaluator creates a risk evaluator. now nil means time.Now.
func NewEvaluator(tasks TaskSource, store RiskStore, notifier notifications.Notifier, now func() time.Time, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{tasks: tasks, store: store, notifier: notifier, now: now, logger: logger}
}

// Result summarizes one evaluation pass.
type Result struct {
	Evaluated int
	Changed   int
	Alerts    int
}

// Evaluate runs one pass over every open assigned task. A failing task is logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context) (Result, error) {
	var res Result
	list, err := e.tasks.ListOpenAssigned(ctx)
	if err != nil {
		return res, fmt.Errorf("list open tasks: %w", err)
	}
	now := e.now()
	for i := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t := &list[i]
		res.Evaluated++
		changed, alert, err := e.evaluate(ctx, t, now)
		if err != nil {
			e.logger.Warn("risk evaluation failed", zap.String("task_id", t.ID.String()), zap.Error(err))
			continue
		}
		if changed {
			res.Changed++
		}
		if alert != nil {
			res.Alerts++
			e.notify(ctx, t, alert)
		}
	}
	return res, nil
}

func (e *Evaluator) evaluate(ctx context.Context, t *models.Task, now time.Time) (bool, *models.Alert, error) {
	if t.AssignedTo == nil || t.Status == models.TaskCompleted {
		return false, nil, nil
	}
	level := models.ComputeRisk(t.DueDate, now)
	if level == t.RiskLevel {
		return false, nil, nil
	}
	var alert *models.Alert
	if level.Rank() > t.RiskLevel.Rank() {
		if typ, ok := models.AlertTypeFor(level); ok {
			taskID := t.ID
			alert = &models.Alert{
				UserID:  *t.AssignedTo,
				TaskID:  &taskID,
				Type:    typ,
				Message: alertMessage(t, now),
			}
		}
	}
	applied, err := e.store.ApplyRisk(ctx, t.ID, t.RiskLevel, level, alert)
	if err != nil || !applied {
		return false, nil, err
	}
	e.logger.Debug("task risk changed",
		zap.String("task_id", t.ID.String()),
		zap.String("from", string(t.RiskLevel)),
		zap.String("to", string(level)),
	)
	return true, alert, nil
}

// AlertAssigned alerts the new assignee of a task that is already inside the Medium or High
// window. Assignment stores the current level, so the evaluator would not see an escalation.
func (e *Evaluator) AlertAssigned(ctx context.Context, t *models.Task) (*models.Alert, error) {
	if t.AssignedTo == nil || t.Status == models.TaskCompleted {
		return nil, nil
	}
	typ, ok := models.AlertTypeFor(t.RiskLevel)
	if !ok {
		return nil, nil
	}
	taskID := t.ID
	alert := &models.Alert{
		UserID:  *t.AssignedTo,
		TaskID:  &taskID,
		Type:    typ,
		Message: alertMessage(t, e.now()),
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	e.notify(ctx, t, alert)
	return alert, nil
}

func alertMessage(t *models.Task, now time.Time) string {
	days := models.DaysUntilDue(t.DueDate, now)
	switch {
	case days < 0:
		return fmt.Sprintf("Task %q is overdue.", t.Title)
	case days == 0:
		return fmt.Sprintf("Task %q is due today.", t.Title)
	case days == 1:
		return fmt.Sprintf("Task %q is due tomorrow.", t.Title)
	}
	return fmt.Sprintf("Task %q is due in %d days.", t.Title, days)
}

func (e *Evaluator) notify(ctx context.Context, t *models.Task, a *models.Alert) {
	e.notifier.Notify(ctx, notifications.Message{
		UserID: a.UserID,
		Type:   models.NotifyRiskAlert,
		Title:  string(a.Type) + " alert",
		Body:   a.Message,
		Data:   map[string]interface{}{"task_id": t.ID, "alert_id": a.ID, "event_id": t.EventID},
		Email:  a.Type == models.AlertCritical,
	})
}
