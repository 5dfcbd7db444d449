package authority

// Grant is anything that may contribute permissions, typically a role.
type Grant interface {
	IsActive() bool
	GrantedPermissions() Permissions
}

// Resolve computes the union of permissions over the active grants.
// Inactive grants contribute nothing even when they are still attached.
func Resolve(grants ...Grant) Permissions {
	var union Permissions
	for _, g := range grants {
		if g == nil || !g.IsActive() {
			continue
		}
		union = append(union, g.GrantedPermissions()...)
	}
	return union.Normalize()
}
