package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotifyTaskAssigned      = "task_assigned"
	NotifyTaskCompleted     = "task_completed"
	NotifyIncidentReported  = "incident_reported"
	NotifyIncidentResolved  = "incident_resolved"
	NotifyMeetingInvitation = "meeting_invitation"
	NotifyMeetingCancelled  = "meeting_cancelled"
	NotifyRiskAlert         = "risk_alert"
	NotifyEventFinished     = "event_finished"
)

// Email delivery states of a notification.
const (
	EmailSkipped = "skipped"
	EmailPending = "pending"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

// Notification is an in-app message for a user, optionally mirrored by email.
type Notification struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data,omitempty"`
	ReadAt      *time.Time      `json:"read_at,omitempty"`
	EmailStatus string          `json:"email_status"`
	EmailedAt   *time.Time      `json:"emailed_at,omitempty"`
	EmailError  string          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}
