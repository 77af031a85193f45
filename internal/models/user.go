package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleCoordinator   Role = "coordinator"
	RoleSeedbedLeader Role = "seedbed_leader"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleSeedbedLeader:
		return true
	}
	return false
}

// User represents a platform user. Admins may have no institution.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Password      string     `json:"-"`
	FullName      string     `json:"full_name"`
	Role          Role       `json:"role"`
	InstitutionID *uuid.UUID `json:"institution_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Role          Role       `json:"role"`
	InstitutionID *uuid.UUID `json:"institution_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		InstitutionID: u.InstitutionID,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
	}
}
