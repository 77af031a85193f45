package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
	TaskDelayed    TaskStatus = "Delayed"
	TaskPaused     TaskStatus = "Paused"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskDelayed, TaskPaused:
		return true
	}
	return false
}

// IsAssignedState reports whether s is one of the states a task holds while someone works it.
func (s TaskStatus) IsAssignedState() bool {
	return s == TaskInProgress || s == TaskDelayed || s == TaskPaused
}

// AfterAssign returns the status a task takes when it gets an assignee.
func (s TaskStatus) AfterAssign() TaskStatus {
	if s == TaskPending {
		return TaskInProgress
	}
	return s
}

// CanCoordinatorMoveTo reports whether a coordinator may move a task from s to next.
// Pending leaves only through assignment and Completed only through the assignee.
func (s TaskStatus) CanCoordinatorMoveTo(next TaskStatus) bool {
	if s == next || !s.IsAssignedState() {
		return false
	}
	return next.IsAssignedState()
}

// RiskLevel is the derived urgency of a task.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Rank orders levels so escalation can be detected.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

// DaysUntilDue counts calendar days (UTC) from now to due. Negative when overdue.
func DaysUntilDue(due, now time.Time) int {
	d := truncateDay(due.UTC())
	n := truncateDay(now.UTC())
	return int(d.Sub(n).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RiskLevelFor maps days until due to a risk level.
//
// Ranges: d < 0 High, 2 <= d <= 5 Medium, d < 2 High, otherwise Low. The second High
// branch only catches 0 <= d < 2; it is kept in this order pending product clarification.
func RiskLevelFor(days int) RiskLevel {
	switch {
	case days < 0:
		return RiskHigh
	case days >= 2 && days <= 5:
		return RiskMedium
	case days < 2:
		return RiskHigh
	default:
		return RiskLow
	}
}

// ComputeRisk returns the risk level of a task due at due, evaluated at now.
func ComputeRisk(due, now time.Time) RiskLevel {
	return RiskLevelFor(DaysUntilDue(due, now))
}

// Task is a unit of work in an event, optionally owned by a committee.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	CommitteeID *uuid.UUID `json:"committee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"due_date"`
	Status      TaskStatus `json:"status"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskProgress is an append-only progress report on a task.
type TaskProgress struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"task_id"`
	UserID      uuid.UUID `json:"user_id"`
	Description string    `json:"description"`
	FileKey     *string   `json:"-"`
	FileName    *string   `json:"file_name,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
