package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingType classifies a meeting.
type MeetingType string

const (
	MeetingPlanning     MeetingType = "planning"
	MeetingCoordination MeetingType = "coordination"
	MeetingCommittee    MeetingType = "committee"
	MeetingGeneral      MeetingType = "general"
)

// Valid reports whether t is a known meeting type.
func (t MeetingType) Valid() bool {
	switch t {
	case MeetingPlanning, MeetingCoordination, MeetingCommittee, MeetingGeneral:
		return true
	}
	return false
}

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Meeting is a scheduled gathering of event participants with QR check-in.
type Meeting struct {
	ID          uuid.UUID     `json:"id"`
	EventID     uuid.UUID     `json:"event_id"`
	CommitteeID *uuid.UUID    `json:"committee_id,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Location    string        `json:"location"`
	MeetingType MeetingType   `json:"meeting_type"`
	QRCode      *string       `json:"qr_code,omitempty"`
	QRExpiresAt *time.Time    `json:"qr_expires_at,omitempty"`
	Status      MeetingStatus `json:"status"`
	CreatedBy   uuid.UUID     `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// QRValid reports whether the meeting's QR code can be used at now.
// The expiry instant itself is already invalid.
func (m *Meeting) QRValid(now time.Time) bool {
	return m.QRCode != nil && *m.QRCode != "" && m.QRExpiresAt != nil && now.Before(*m.QRExpiresAt)
}

// InvitationStatus is an invitee's answer.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// MeetingInvitation is one invitee of a meeting.
type MeetingInvitation struct {
	ID          uuid.UUID        `json:"id"`
	MeetingID   uuid.UUID        `json:"meeting_id"`
	UserID      uuid.UUID        `json:"user_id"`
	Status      InvitationStatus `json:"status"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CheckInMethod records how attendance was taken.
type CheckInMethod string

const (
	CheckInQR     CheckInMethod = "qr"
	CheckInManual CheckInMethod = "manual"
)

// MeetingAttendance is one attendee of a meeting.
type MeetingAttendance struct {
	ID           uuid.UUID     `json:"id"`
	MeetingID    uuid.UUID     `json:"meeting_id"`
	UserID       uuid.UUID     `json:"user_id"`
	CheckedInVia CheckInMethod `json:"checked_in_via"`
	CheckedInAt  time.Time     `json:"checked_in_at"`

	FullName string `json:"full_name,omitempty"`
}
