// Package capabilities maps site roles to the permissions the enrolment
// service checks. The table is static: a role either carries a capability or
// it does not, and unknown roles carry nothing.
package capabilities

import "strings"

// Capability names.
const (
	EnrolSelf  = "enrol/auto:enrolself"
	Manage     = "enrol/auto:manage"
	Config     = "enrol/auto:config"
	Unenrol    = "enrol/auto:unenrol"
	SiteConfig = "enrol/auto:siteconfig"
)

// Role shortnames known to the table.
const (
	RoleGuest          = "guest"
	RoleStudent        = "student"
	RoleTeacher        = "teacher"
	RoleEditingTeacher = "editingteacher"
	RoleManager        = "manager"
	RoleAdmin          = "admin"
)

// Set is an immutable collection of capability names.
type Set map[string]struct{}

// Of builds a Set from names.
func Of(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the set contains name. A nil Set has nothing.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the capabilities in table order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for _, n := range all {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

var all = []string{EnrolSelf, Manage, Config, Unenrol, SiteConfig}

var byRole = map[string]Set{
	RoleGuest:          Of(),
	RoleStudent:        Of(EnrolSelf),
	RoleTeacher:        Of(EnrolSelf),
	RoleEditingTeacher: Of(EnrolSelf, Manage, Unenrol),
	RoleManager:        Of(EnrolSelf, Manage, Config, Unenrol),
	RoleAdmin:          Of(EnrolSelf, Manage, Config, Unenrol, SiteConfig),
}

// ForRole returns the capabilities granted to a role (case-insensitive).
func ForRole(role string) Set {
	if s, ok := byRole[strings.ToLower(strings.TrimSpace(role))]; ok {
		return s
	}
	return Set{}
}

// KnownRole reports whether role appears in the table.
func KnownRole(role string) bool {
	_, ok := byRole[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// AssignableRole reports whether role may be granted by an enrolment. The
// guest role is known but never assigned.
func AssignableRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role != RoleGuest && KnownRole(role)
}
