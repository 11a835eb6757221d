package session

import (
	"time"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/progress"
	"github.com/mind-engage/mindengage-learn/internal/selection"
	"github.com/mind-engage/mindengage-learn/internal/submission"
	"github.com/mind-engage/mindengage-learn/internal/video"
)

type LessonView struct {
	Lesson    course.Lesson `json:"lesson"`
	Video     video.Source  `json:"video"`
	Locked    bool          `json:"locked"`
	Completed bool          `json:"completed"`
}

type TaskView struct {
	Task      course.Task `json:"task"`
	Locked    bool        `json:"locked"`
	Completed bool        `json:"completed"`
}

type DayView struct {
	Number  int          `json:"day"`
	Locked  bool         `json:"locked"`
	Lessons []LessonView `json:"lessons"`
	Tasks   []TaskView   `json:"tasks"`
}

// Countdown is the running dwell timer. Seconds is the time left, rounded
// up; DwellSeconds is the full dwell.
type Countdown struct {
	LessonID     course.LessonID `json:"lessonId"`
	Seconds      int             `json:"seconds"`
	DwellSeconds int             `json:"dwellSeconds"`
}

// View is everything the learner UI renders for a session.
type View struct {
	SessionID     string                `json:"sessionId"`
	CourseID      course.CourseID       `json:"courseId"`
	Role          course.Role           `json:"role"`
	Privileged    bool                  `json:"privileged"`
	Empty         bool                  `json:"empty"`
	Days          []DayView             `json:"days"`
	Gate          course.Gate           `json:"gate"`
	Selection     selection.Active      `json:"selection"`
	Progress      progress.Snapshot     `json:"progress"`
	Flow          submission.View       `json:"flow"`
	Countdown     *Countdown            `json:"countdown,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

func (s *Session) View() View {
	s.touch()
	snap := s.tracker.Snapshot()
	gate := snap.Progress.Gate()

	v := View{
		SessionID:     s.ID,
		CourseID:      s.CourseID,
		Role:          s.Identity.Role,
		Privileged:    s.viewer.Privileged,
		Empty:         s.outline.Empty(),
		Days:          []DayView{},
		Gate:          gate,
		Selection:     s.sel.Active(),
		Progress:      snap,
		Flow:          s.engine.View(),
		Notifications: s.notes.Active(),
	}
	for _, d := range s.outline.Days() {
		dv := DayView{
			Number:  d.Number,
			Locked:  !s.deps.Policy.IsUnlocked(d.Number, s.viewer, gate),
			Lessons: make([]LessonView, 0, len(d.Lessons)),
			Tasks:   make([]TaskView, 0, len(d.Tasks)),
		}
		for _, l := range d.Lessons {
			dv.Lessons = append(dv.Lessons, LessonView{
				Lesson:    l,
				Video:     video.Classify(l.VideoURL),
				Locked:    !s.deps.Policy.LessonUnlocked(l, s.viewer, gate),
				Completed: s.tracker.IsLessonCompleted(l.ID),
			})
		}
		for _, t := range d.Tasks {
			// the catalog copy carries the load-time flag; the tracker is current
			t.Completed = s.tracker.IsTaskCompleted(t.ID)
			dv.Tasks = append(dv.Tasks, TaskView{
				Task:      t,
				Locked:    !s.deps.Policy.TaskUnlocked(t, s.viewer, gate),
				Completed: t.Completed,
			})
		}
		v.Days = append(v.Days, dv)
	}
	if id, left, ok := s.timer.Remaining(); ok {
		v.Countdown = &Countdown{
			LessonID:     id,
			Seconds:      int((left + time.Second - 1) / time.Second),
			DwellSeconds: int(s.timer.Dwell() / time.Second),
		}
	}
	return v
}
