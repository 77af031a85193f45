package models

import (
	"time"

	"github.com/google/uuid"
)

// Institution is the tenant every non-admin user and every event belongs to.
type Institution struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
