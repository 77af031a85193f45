// Package policy holds the authorization rules. Every function is pure: callers load
// the entities, policy decides.
package policy

import (
	"github.com/google/uuid"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
)

// Permission is a capability granted to a role.
type Permission string

const (
	InstitutionsManage Permission = "institutions.manage"
	UsersManage        Permission = "users.manage"
	EventsCreate       Permission = "events.create"
	EventsManage       Permission = "events.manage"
	EventsParticipate  Permission = "events.participate"
	CommitteesManage   Permission = "committees.manage"
	TasksManage        Permission = "tasks.manage"
	TasksClaim         Permission = "tasks.claim"
	IncidentsResolve   Permission = "incidents.resolve"
	MeetingsManage     Permission = "meetings.manage"
)

var rolePermissions = map[models.Role]map[Permission]bool{
	models.RoleAdmin: {
		InstitutionsManage: true,
		UsersManage:        true,
	},
	models.RoleCoordinator: {
		EventsCreate:     true,
		EventsManage:     true,
		CommitteesManage: true,
		TasksManage:      true,
		IncidentsResolve: true,
		MeetingsManage:   true,
	},
	models.RoleSeedbedLeader: {
		EventsParticipate: true,
		TasksClaim:        true,
	},
}

// RoleHas reports whether role is granted p.
func RoleHas(role models.Role, p Permission) bool {
	return rolePermissions[role][p]
}

// Actor is the authenticated user a decision is made for.
type Actor struct {
	UserID        uuid.UUID
	Role          models.Role
	InstitutionID *uuid.UUID
}

// ActorFromUser builds an Actor from a loaded user.
func ActorFromUser(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, InstitutionID: u.InstitutionID}
}

// Can reports whether the actor's role grants p.
func (a Actor) Can(p Permission) bool {
	return RoleHas(a.Role, p)
}

// InInstitution reports whether the actor belongs to institutionID.
// Actors without an institution belong to none.
func (a Actor) InInstitution(institutionID uuid.UUID) bool {
	return a.InstitutionID != nil && *a.InstitutionID == institutionID
}

// Authorize turns a visibility and a permission decision into the error callers return.
// Invisible entities present as not found so other tenants' data never leaks.
func Authorize(visible, allowed bool) error {
	if !visible {
		return apperr.ErrNotFound
	}
	if !allowed {
		return apperr.ErrForbidden
	}
	return nil
}
