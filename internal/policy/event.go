package policy

import (
	"github.com/nexusesi/backend/internal/models"
)

// ReuseGate decides whether a finished event's data may be reused.
type ReuseGate func(ev *models.Event) bool

// AllowReuse is the default gate.
func AllowReuse(*models.Event) bool { return true }

// CanViewEvent reports whether a may see ev.
func CanViewEvent(a Actor, ev *models.Event) bool {
	return ev != nil && a.InInstitution(ev.InstitutionID)
}

// CanCreateEvent reports whether a may create events in their institution.
func CanCreateEvent(a Actor) bool {
	return a.Can(EventsCreate) && a.InstitutionID != nil
}

// CanManageEvent covers update, status, finish and delete: the owning coordinator.
func CanManageEvent(a Actor, ev *models.Event) bool {
	return CanViewEvent(a, ev) && a.Can(EventsManage) && ev.CoordinatorID == a.UserID
}

// CanParticipate reports whether a may join ev. Status and the one-active-event rule are business checks.
func CanParticipate(a Actor, ev *models.Event) bool {
	return CanViewEvent(a, ev) && a.Can(EventsParticipate)
}

// CanReuseEvent reports whether a may clone ev's data. gate nil means AllowReuse.
func CanReuseEvent(a Actor, ev *models.Event, gate ReuseGate) bool {
	if gate == nil {
		gate = AllowReuse
	}
	return CanManageEvent(a, ev) && gate(ev)
}
