// Package unlock decides whether drip-scheduled content is open to a viewer.
package unlock

import (
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
)

// Viewer is the capability the policy needs from the caller's identity.
type Viewer struct {
	Privileged bool
}

// ViewerFor derives the capability from a backend role.
func ViewerFor(c *rbac.Checker, role course.Role) Viewer {
	return Viewer{Privileged: c.Has(string(role), rbac.PermBypassDrip)}
}

type Policy struct {
	// StrictEnrollment treats a missing daysElapsed as day 0, locking all
	// learner content until the backend reports an enrollment date.
	StrictEnrollment bool
}

// IsUnlocked reports whether an item scheduled for day is accessible. For a
// learner both counters must have reached the item's day.
func (p Policy) IsUnlocked(day int, v Viewer, g course.Gate) bool {
	if v.Privileged {
		return true
	}
	elapsed := g.DaysElapsed
	if !g.ElapsedKnown {
		elapsed = course.UnboundedDays
		if p.StrictEnrollment {
			elapsed = 0
		}
	}
	return day <= g.CurrentDay && day <= elapsed
}

func (p Policy) LessonUnlocked(l course.Lesson, v Viewer, g course.Gate) bool {
	return p.IsUnlocked(l.Day(), v, g)
}

func (p Policy) TaskUnlocked(t course.Task, v Viewer, g course.Gate) bool {
	return p.IsUnlocked(t.Day(), v, g)
}
