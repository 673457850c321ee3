// Package enrolpolicy provides authorization policies for auto enrolment
// administration.
//
// Authorization rules:
//   - enrol/auto:manage adds, edits and lists instances and edits enrolments
//   - enrol/auto:config hides, shows and deletes instances
//   - enrol/auto:unenrol removes a user's enrolment
//   - enrol/auto:siteconfig reads and changes site-level settings
//   - enrol/auto:enrolself lets a user be enrolled by viewing a course
package enrolpolicy

import "github.com/dalemusser/autoenrol/internal/app/system/capabilities"

// Checker answers capability checks for the acting user.
type Checker interface {
	Can(capability string) bool
}

// CanAddInstance reports whether an instance may be added to a course.
func CanAddInstance(c Checker) bool {
	return c.Can(capabilities.Manage)
}

// AllowManage reports whether instance settings and enrolments may be edited.
func AllowManage(c Checker) bool {
	return c.Can(capabilities.Manage)
}

// CanHideShow reports whether an instance may be enabled or disabled.
func CanHideShow(c Checker) bool {
	return c.Can(capabilities.Config)
}

// CanDelete reports whether an instance may be deleted.
func CanDelete(c Checker) bool {
	return c.Can(capabilities.Config)
}

// AllowUnenrol reports whether a user's enrolment may be removed.
// Auto enrolments are always removable by someone holding the capability.
func AllowUnenrol(c Checker) bool {
	return c.Can(capabilities.Unenrol)
}

// CanConfigure reports whether site-level settings may be read or changed.
func CanConfigure(c Checker) bool {
	return c.Can(capabilities.SiteConfig)
}

// CanExport reports whether a course's enrolment data may be exported.
func CanExport(c Checker) bool {
	return c.Can(capabilities.Manage)
}

// CanRestore reports whether a snapshot may be restored into a course.
// Restoring creates instances and enrolments, so it needs both.
func CanRestore(c Checker) bool {
	return c.Can(capabilities.Manage) && c.Can(capabilities.Config)
}

// CanViewAudit reports whether audit events may be listed. Course managers
// see their course's events; the whole log needs site configuration.
func CanViewAudit(c Checker, courseScoped bool) bool {
	if c.Can(capabilities.SiteConfig) {
		return true
	}
	return courseScoped && c.Can(capabilities.Manage)
}
