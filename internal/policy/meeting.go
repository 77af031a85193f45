package policy

import "github.com/nexusesi/backend/internal/models"

// CanManageMeetings covers create, cancel, QR generation and manual attendance.
func CanManageMeetings(a Actor, ev *models.Event) bool {
	return CanViewEvent(a, ev) && a.Can(MeetingsManage)
}

// CanCheckIn reports whether a may register attendance to a meeting of ev.
func CanCheckIn(a Actor, ev *models.Event) bool {
	return CanViewEvent(a, ev)
}
