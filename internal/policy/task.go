package policy

import (
	"github.com/google/uuid"

	"github.com/nexusesi/backend/internal/models"
)

// CanViewTask reports whether a may see tasks of ev. A nil event denies.
func CanViewTask(a Actor, ev *models.Event) bool {
	return ev != nil && a.InInstitution(ev.InstitutionID)
}

// CanManageTasks covers create, update, delete, status changes and assigning anyone.
func CanManageTasks(a Actor, ev *models.Event) bool {
	return CanViewTask(a, ev) && a.Can(TasksManage)
}

// ClaimEligible reports whether a may claim t for target, ignoring whether t is already taken.
func ClaimEligible(a Actor, ev *models.Event, t *models.Task, target uuid.UUID, isMember bool) bool {
	return CanViewTask(a, ev) &&
		a.Can(TasksClaim) &&
		target == a.UserID &&
		t.CommitteeID != nil &&
		isMember
}

// CanAssign reports whether a may assign t to target. Coordinators may reassign;
// leaders may only claim an unassigned task of a committee they belong to.
func CanAssign(a Actor, ev *models.Event, t *models.Task, target uuid.UUID, isMember bool) bool {
	if CanManageTasks(a, ev) {
		return true
	}
	return ClaimEligible(a, ev, t, target, isMember) && t.AssignedTo == nil
}

// CanWorkTask covers complete, progress and incident reports: assignee only.
func CanWorkTask(a Actor, ev *models.Event, t *models.Task) bool {
	return CanViewTask(a, ev) && t.IsAssignedTo(a.UserID)
}

// CanResolveIncident reports whether a may resolve incidents on tasks of ev.
func CanResolveIncident(a Actor, ev *models.Event) bool {
	return CanViewTask(a, ev) && a.Can(IncidentsResolve)
}
