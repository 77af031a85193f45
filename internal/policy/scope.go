package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
)

// ErrNoEvent is returned when a task scope does not resolve to an event.
var ErrNoEvent = fmt.Errorf("task has no event: %w", apperr.ErrNotFound)

// TaskScope is where a task hangs: directly on an event or on a committee of one.
type TaskScope interface {
	isTaskScope()
}

// DirectEvent scopes a task to an event.
type DirectEvent struct {
	EventID uuid.UUID
}

// ViaCommittee scopes a task to a committee, whose event owns the task.
type ViaCommittee struct {
	CommitteeID uuid.UUID
}

func (DirectEvent) isTaskScope()  {}
func (ViaCommittee) isTaskScope() {}

// ScopeOf returns the scope of t, or nil when it references neither an event nor a committee.
func ScopeOf(t *models.Task) TaskScope {
	switch {
	case t == nil:
		return nil
	case t.EventID != uuid.Nil:
		return DirectEvent{EventID: t.EventID}
	case t.CommitteeID != nil && *t.CommitteeID != uuid.Nil:
		return ViaCommittee{CommitteeID: *t.CommitteeID}
	}
	return nil
}

// EventLookup loads the events a scope may point at.
type EventLookup interface {
	EventByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	EventByCommittee(ctx context.Context, committeeID uuid.UUID) (*models.Event, error)
}

// ResolveEvent loads the event a scope resolves to. A nil or dangling scope fails closed.
func ResolveEvent(ctx context.Context, scope TaskScope, lookup EventLookup) (*models.Event, error) {
	var (
		ev  *models.Event
		err error
	)
	switch s := scope.(type) {
	case DirectEvent:
		ev, err = lookup.EventByID(ctx, s.EventID)
	case ViaCommittee:
		ev, err = lookup.EventByCommittee(ctx, s.CommitteeID)
	default:
		return nil, ErrNoEvent
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrNoEvent
		}
		return nil, err
	}
	if ev == nil {
		return nil, ErrNoEvent
	}
	return ev, nil
}
