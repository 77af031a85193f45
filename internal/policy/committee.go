package policy

import "github.com/nexusesi/backend/internal/models"

// CanManageCommittees covers committee CRUD and membership for ev.
func CanManageCommittees(a Actor, ev *models.Event) bool {
	return CanViewEvent(a, ev) && a.Can(CommitteesManage)
}
