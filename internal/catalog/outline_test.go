package catalog

import (
	"strconv"
	"testing"

	"github.com/mind-engage/mindengage-learn/internal/course"
)

func TestBuildGroupsAndOrders(t *testing.T) {
	lessons := []course.Lesson{
		{ID: 3, DayNumber: 2, Order: 1},
		{ID: 2, DayNumber: 1, Order: 2},
		{ID: 1, Order: 1}, // no day → day 1
	}
	tasks := []course.Task{
		{ID: 20, DayNumber: 2, Payload: course.Theory{}},
		{ID: 10, Payload: course.Coding{}},
		{ID: 11, DayNumber: 1, Payload: course.MCQ{}},
	}
	o := Build(lessons, tasks)

	days := o.Days()
	if len(days) != 2 || days[0].Number != 1 || days[1].Number != 2 {
		t.Fatalf("days = %+v", days)
	}
	if got := ids(days[0].Lessons); got != "1,2" {
		t.Fatalf("day 1 lessons = %s", got)
	}
	if len(days[0].Tasks) != 2 || days[0].Tasks[0].ID != 10 || days[0].Tasks[1].ID != 11 {
		t.Fatalf("day 1 tasks = %+v", days[0].Tasks)
	}
	if first, ok := o.FirstLesson(); !ok || first.ID != 1 {
		t.Fatalf("first lesson = %+v", first)
	}
	if lessons[0].ID != 3 {
		t.Fatal("input slice was reordered")
	}
	if o.LessonCount() != 3 || len(o.Lessons()) != 3 {
		t.Fatalf("lesson count = %d", o.LessonCount())
	}
}

func TestBuildStableForEqualOrder(t *testing.T) {
	o := Build([]course.Lesson{{ID: 7, Order: 1}, {ID: 5, Order: 1}}, nil)
	if got := ids(o.Days()[0].Lessons); got != "7,5" {
		t.Fatalf("lessons = %s", got)
	}
}

func TestBuildEmpty(t *testing.T) {
	o := Build(nil, nil)
	if !o.Empty() {
		t.Fatal("expected empty outline")
	}
	if _, ok := o.FirstLesson(); ok {
		t.Fatal("empty outline has no first lesson")
	}
	if _, ok := o.Task(1); ok {
		t.Fatal("unexpected task")
	}
}

func ids(ls []course.Lesson) string {
	s := ""
	for i, l := range ls {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatInt(int64(l.ID), 10)
	}
	return s
}
