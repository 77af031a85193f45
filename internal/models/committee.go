package models

import (
	"time"

	"github.com/google/uuid"
)

// Committee groups a subset of an event's participants and owns tasks.
type Committee struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCommitteeRole is stored when a member is added without a role.
const DefaultCommitteeRole = "member"

// CommitteeMember links a user to a committee.
type CommitteeMember struct {
	CommitteeID uuid.UUID `json:"committee_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	AssignedAt  time.Time `json:"assigned_at"`

	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}
