package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies an alert by severity.
type AlertType string

const (
	AlertPreventive AlertType = "Preventive"
	AlertCritical   AlertType = "Critical"
)

// AlertTypeFor returns the alert raised when a task reaches level, and false for Low.
func AlertTypeFor(level RiskLevel) (AlertType, bool) {
	switch level {
	case RiskMedium:
		return AlertPreventive, true
	case RiskHigh:
		return AlertCritical, true
	}
	return "", false
}

// Alert is a risk warning delivered to a task assignee.
type Alert struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Type      AlertType  `json:"type"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
