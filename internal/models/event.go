package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventActive   EventStatus = "active"
	EventInactive EventStatus = "inactive"
	EventFinished EventStatus = "finished"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventActive, EventInactive, EventFinished:
		return true
	}
	return false
}

// CanTransitionTo reports whether an event may move from s to next.
// finished is terminal; active and inactive toggle and both may finish.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventActive:
		return next == EventInactive || next == EventFinished
	case EventInactive:
		return next == EventActive || next == EventFinished
	}
	return false
}

// Event is the top-level container for committees, tasks and meetings.
type Event struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	CoordinatorID uuid.UUID   `json:"coordinator_id"`
	InstitutionID uuid.UUID   `json:"institution_id"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsFinished reports whether the event reached its terminal state.
func (e *Event) IsFinished() bool {
	return e.Status == EventFinished
}

// InPlanningPhase reports whether the event has not started yet and is not finished.
func (e *Event) InPlanningPhase(now time.Time) bool {
	return !e.IsFinished() && now.Before(e.StartDate)
}

// EventParticipant is a user's participation in an event.
type EventParticipant struct {
	ID                uuid.UUID  `json:"id"`
	EventID           uuid.UUID  `json:"event_id"`
	UserID            uuid.UUID  `json:"user_id"`
	ParticipationRole string     `json:"participation_role"`
	IsActive          bool       `json:"is_active"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DefaultParticipationRole is stored when none is supplied.
const DefaultParticipationRole = "participant"
