package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-learn/internal/catalog"
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/unlock"
)

type fakeEngine struct {
	active      *course.Task
	loads       int
	deactivated int
}

func (e *fakeEngine) Activate(t course.Task) uint64 {
	e.active = &t
	return 1
}

func (e *fakeEngine) Deactivate() {
	e.active = nil
	e.deactivated++
}

func (e *fakeEngine) Load(context.Context) error {
	e.loads++
	return nil
}

type fakeTimer struct {
	started  []course.LessonID
	cancels  int
	fire     func(course.LessonID)
	armedFor course.LessonID
}

func (t *fakeTimer) Start(id course.LessonID, fire func(course.LessonID)) {
	t.started = append(t.started, id)
	t.armedFor, t.fire = id, fire
}
func (t *fakeTimer) Cancel() {
	t.cancels++
	t.armedFor = 0
}

type doneSet map[course.LessonID]bool

func (d doneSet) IsLessonCompleted(id course.LessonID) bool { return d[id] }

const drive = "https://drive.google.com/file/d/abc/view"

func fixture() catalog.Outline {
	return catalog.Build(
		[]course.Lesson{
			{ID: 1, DayNumber: 1, Order: 1, VideoURL: drive},
			{ID: 2, DayNumber: 1, Order: 2, VideoURL: "https://youtu.be/dQw4w9WgXcQ"},
			{ID: 3, DayNumber: 2, Order: 1, VideoURL: drive},
		},
		[]course.Task{
			{ID: 10, DayNumber: 1, Payload: course.MCQ{}},
			{ID: 11, DayNumber: 1, Payload: course.Coding{}},
			{ID: 12, DayNumber: 2, Payload: course.Theory{}},
		},
	)
}

func day(n int) *int { return &n }

func newController(viewer unlock.Viewer, done doneSet) (*Controller, *fakeEngine, *fakeTimer, *[]course.LessonID) {
	eng, tm := &fakeEngine{}, &fakeTimer{}
	var fired []course.LessonID
	gate := course.Progress{CurrentDay: day(1), DaysElapsed: day(1)}.Gate()
	c := New(Config{
		Catalog:    fixture(),
		Viewer:     viewer,
		Gate:       func() course.Gate { return gate },
		Completion: done,
		Engine:     eng,
		Timer:      tm,
		OnDwell:    func(id course.LessonID) { fired = append(fired, id) },
	})
	return c, eng, tm, &fired
}

func TestSelectionIsExclusive(t *testing.T) {
	c, eng, _, _ := newController(unlock.Viewer{}, doneSet{})
	ctx := context.Background()

	if a := c.Active(); a.State != Idle || a.LessonID != nil || a.TaskID != nil {
		t.Fatalf("initial = %+v", a)
	}
	if err := c.SelectLesson(1); err != nil {
		t.Fatal(err)
	}
	if a := c.Active(); a.LessonID == nil || *a.LessonID != 1 || a.TaskID != nil || a.Tab != TabOverview {
		t.Fatalf("after lesson = %+v", a)
	}
	if err := c.SelectTask(ctx, 10); err != nil {
		t.Fatal(err)
	}
	a := c.Active()
	if a.TaskID == nil || *a.TaskID != 10 || a.LessonID != nil || a.Tab != TabTasks {
		t.Fatalf("after task = %+v", a)
	}
	if eng.active == nil || eng.active.ID != 10 || eng.loads != 1 {
		t.Fatalf("engine not activated and loaded: %+v loads=%d", eng.active, eng.loads)
	}
	if err := c.SelectLesson(2); err != nil {
		t.Fatal(err)
	}
	if a := c.Active(); a.TaskID != nil || a.LessonID == nil || *a.LessonID != 2 {
		t.Fatalf("after second lesson = %+v", a)
	}
	if eng.active != nil {
		t.Fatal("engine still holds a task after lesson selection")
	}
}

func TestLockedSelectionIsNoop(t *testing.T) {
	c, eng, tm, _ := newController(unlock.Viewer{}, doneSet{})
	if err := c.SelectLesson(1); err != nil {
		t.Fatal(err)
	}
	gen := c.Generation()
	if err := c.SelectLesson(3); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v", err)
	}
	if err := c.SelectTask(context.Background(), 12); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v", err)
	}
	if a := c.Active(); *a.LessonID != 1 || c.Generation() != gen {
		t.Fatalf("locked selection changed state: %+v", a)
	}
	if eng.active != nil || len(tm.started) != 1 {
		t.Fatal("locked selection had side effects")
	}
	if err := c.SelectLesson(99); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrivilegedViewerBypassesDrip(t *testing.T) {
	c, _, _, _ := newController(unlock.Viewer{Privileged: true}, doneSet{})
	if err := c.SelectLesson(3); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectTask(context.Background(), 12); err != nil {
		t.Fatal(err)
	}
}

func TestTimerLifecycle(t *testing.T) {
	c, _, tm, fired := newController(unlock.Viewer{}, doneSet{})

	_ = c.SelectLesson(1)
	if tm.armedFor != 1 {
		t.Fatal("countdown not started for a drive lesson")
	}
	_ = c.SelectLesson(2)
	if tm.armedFor != 0 || len(tm.started) != 1 {
		t.Fatal("countdown survived switching to a platform video")
	}
	_ = c.SelectLesson(1)
	_ = c.SelectLesson(1)
	if len(tm.started) != 3 {
		t.Fatalf("reselection did not restart: %v", tm.started)
	}
	tm.fire(1)
	if len(*fired) != 1 || (*fired)[0] != 1 {
		t.Fatalf("fired = %v", *fired)
	}
	_ = c.SelectTask(context.Background(), 11)
	if tm.armedFor != 0 {
		t.Fatal("countdown survived task selection")
	}
}

func TestCompletedLessonGetsNoTimer(t *testing.T) {
	c, _, tm, _ := newController(unlock.Viewer{}, doneSet{1: true})
	_ = c.SelectLesson(1)
	if len(tm.started) != 0 {
		t.Fatal("countdown attached to a completed lesson")
	}
}

func TestCodingTaskSkipsLoad(t *testing.T) {
	c, eng, _, _ := newController(unlock.Viewer{}, doneSet{})
	if err := c.SelectTask(context.Background(), 11); err != nil {
		t.Fatal(err)
	}
	if eng.loads != 0 {
		t.Fatal("coding task triggered a submission fetch")
	}
}

func TestSetTabAndClose(t *testing.T) {
	c, eng, tm, _ := newController(unlock.Viewer{}, doneSet{})
	_ = c.SelectLesson(1)
	if err := c.SetTab(TabTasks); err != nil || c.Active().Tab != TabTasks {
		t.Fatalf("tab = %v %v", c.Active().Tab, err)
	}
	if err := c.SetTab("grades"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("err = %v", err)
	}
	c.Close()
	if a := c.Active(); a.State != Idle || tm.armedFor != 0 || eng.active != nil {
		t.Fatalf("close left state: %+v", a)
	}
}
