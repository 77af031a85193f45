package policy

// CanManageInstitutions reports whether a administers institutions.
func CanManageInstitutions(a Actor) bool { return a.Can(InstitutionsManage) }

// CanManageUsers reports whether a administers user accounts.
func CanManageUsers(a Actor) bool { return a.Can(UsersManage) }
