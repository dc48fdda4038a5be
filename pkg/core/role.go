package core

// Access is the level of access a role has to a hierarchy.
type Access int

const (
	AccessAll Access = iota
	AccessCustom
	AccessNone
)

// Role restricts which members a session may see.
type Role interface {
	Name() string
	// RestrictedMembers returns the members granted at level when access
	// to the level is restricted.
	RestrictedMembers(level *Level) ([]Member, bool)
	// CanAccess reports whether m is visible.
	CanAccess(m Member) bool
}

// GrantRole is a Role built from per-level member grants.
type GrantRole struct {
	name   string
	access map[*Hierarchy]Access
	grants map[*Level][]Member
}

// NewRole creates a role with full access everywhere.
func NewRole(name string) *GrantRole {
	return &GrantRole{
		name:   name,
		access: make(map[*Hierarchy]Access),
		grants: make(map[*Level][]Member),
	}
}

func (r *GrantRole) Name() string { return r.name }

// SetAccess overrides access to a whole hierarchy.
func (r *GrantRole) SetAccess(h *Hierarchy, a Access) *GrantRole {
	r.access[h] = a
	return r
}

// Grant restricts level to the given members and makes the hierarchy custom.
func (r *GrantRole) Grant(level *Level, members ...Member) *GrantRole {
	r.grants[level] = append(r.grants[level], members...)
	r.access[level.Hierarchy()] = AccessCustom
	return r
}

func (r *GrantRole) RestrictedMembers(level *Level) ([]Member, bool) {
	ms, ok := r.grants[level]
	return ms, ok
}

func (r *GrantRole) CanAccess(m Member) bool {
	if m == nil {
		return false
	}
	if m.IsAll() || m.IsNull() || IsMeasure(m) {
		return r.access[m.Hierarchy()] != AccessNone
	}
	switch r.access[m.Hierarchy()] {
	case AccessNone:
		return false
	case AccessAll:
		return true
	}
	restricted := false
	for level, granted := range r.grants {
		if level.Hierarchy() != m.Hierarchy() {
			continue
		}
		restricted = true
		for _, g := range granted {
			if m.Level().Depth() < level.Depth() {
				if IsAncestorOf(m, g) {
					return true
				}
				continue
			}
			for c := m; c != nil; c = c.Parent() {
				if c.Level() == level && SameMember(c, g) {
					return true
				}
			}
		}
	}
	return !restricted
}
