package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentStatus is the state of a reported incident.
type IncidentStatus string

const (
	IncidentReported IncidentStatus = "Reported"
	IncidentResolved IncidentStatus = "Resolved"
)

// Incident is a problem reported against a task by its assignee.
type Incident struct {
	ID             uuid.UUID      `json:"id"`
	TaskID         uuid.UUID      `json:"task_id"`
	ReportedBy     uuid.UUID      `json:"reported_by"`
	Description    string         `json:"description"`
	Status         IncidentStatus `json:"status"`
	FileKey        *string        `json:"-"`
	FileName       *string        `json:"file_name,omitempty"`
	FileURL        string         `json:"file_url,omitempty"`
	SolutionTaskID *uuid.UUID     `json:"solution_task_id,omitempty"`
	Resolution     *string        `json:"resolution,omitempty"`
	ResolvedBy     *uuid.UUID     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
