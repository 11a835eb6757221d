// Package catalog arranges a course's lessons and tasks into the day-bucketed
// outline the learner navigates.
package catalog

import (
	"sort"

	"github.com/mind-engage/mindengage-learn/internal/course"
)

// Day is one drip bucket. Lessons are ordered by their intra-day order;
// tasks keep the order the backend returned them in (creation order).
type Day struct {
	Number  int             `json:"day"`
	Lessons []course.Lesson `json:"lessons"`
	Tasks   []course.Task   `json:"tasks"`
}

type Outline struct {
	days    []Day
	lessons map[course.LessonID]course.Lesson
	tasks   map[course.TaskID]course.Task
}

// Build groups lessons and tasks by day. The input slices are not modified.
func Build(lessons []course.Lesson, tasks []course.Task) Outline {
	o := Outline{
		lessons: make(map[course.LessonID]course.Lesson, len(lessons)),
		tasks:   make(map[course.TaskID]course.Task, len(tasks)),
	}
	byDay := map[int]*Day{}
	bucket := func(n int) *Day {
		d, ok := byDay[n]
		if !ok {
			d = &Day{Number: n, Lessons: []course.Lesson{}, Tasks: []course.Task{}}
			byDay[n] = d
		}
		return d
	}
	for _, l := range lessons {
		d := bucket(l.Day())
		d.Lessons = append(d.Lessons, l)
		o.lessons[l.ID] = l
	}
	for _, t := range tasks {
		d := bucket(t.Day())
		d.Tasks = append(d.Tasks, t)
		o.tasks[t.ID] = t
	}

	o.days = make([]Day, 0, len(byDay))
	for _, d := range byDay {
		sort.SliceStable(d.Lessons, func(i, j int) bool { return d.Lessons[i].Order < d.Lessons[j].Order })
		o.days = append(o.days, *d)
	}
	sort.Slice(o.days, func(i, j int) bool { return o.days[i].Number < o.days[j].Number })
	return o
}

// Empty is the explicit "no content yet" signal.
func (o Outline) Empty() bool { return len(o.days) == 0 }

func (o Outline) Days() []Day { return o.days }

func (o Outline) Lesson(id course.LessonID) (course.Lesson, bool) {
	l, ok := o.lessons[id]
	return l, ok
}

func (o Outline) Task(id course.TaskID) (course.Task, bool) {
	t, ok := o.tasks[id]
	return t, ok
}

func (o Outline) LessonCount() int { return len(o.lessons) }

// Lessons returns every lesson in outline order.
func (o Outline) Lessons() []course.Lesson {
	out := make([]course.Lesson, 0, len(o.lessons))
	for _, d := range o.days {
		out = append(out, d.Lessons...)
	}
	return out
}

// FirstLesson is the first lesson of the earliest day, if any.
func (o Outline) FirstLesson() (course.Lesson, bool) {
	for _, d := range o.days {
		if len(d.Lessons) > 0 {
			return d.Lessons[0], true
		}
	}
	return course.Lesson{}, false
}
