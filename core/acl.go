package core

// AllPermissions is every grant kind an owner receives on the records they
// create.
var AllPermissions = []Permission{PermissionRead, PermissionWrite}

// AccessList is the set of (user, permission) grants attached to a record.
// A record with no grants is invisible to every authenticated principal.
type AccessList []Grant

// Allows reports whether the list carries the permission for the user.
func (l AccessList) Allows(userID string, perm Permission) bool {
	if userID == "" {
		return false
	}
	for _, g := range l {
		if g.UserID == userID && g.Permission == perm {
			return true
		}
	}
	return false
}

// GrantOwner returns the list with the owner's read and write grants added.
// Existing pairs are kept, never duplicated.
func (l AccessList) GrantOwner(userID string) AccessList {
	out := l
	for _, perm := range AllPermissions {
		if out.Allows(userID, perm) {
			continue
		}
		out = append(out, Grant{UserID: userID, Permission: perm})
	}
	return out
}
