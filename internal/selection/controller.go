// Package selection tracks which lesson or task a learner has open and
// drives the side effects of switching: the submission engine and the
// auto-complete countdown.
package selection

import (
	"context"
	"errors"
	"sync"

	"github.com/mind-engage/mindengage-learn/internal/autocomplete"
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/unlock"
	"github.com/mind-engage/mindengage-learn/internal/video"
)

var (
	ErrLocked      = errors.New("selection: content is locked")
	ErrUnknownItem = errors.New("selection: no such lesson or task in this course")
	ErrUnknownTab  = errors.New("selection: unknown tab")
)

type State string

const (
	Idle         State = "idle"
	LessonActive State = "lesson"
	TaskActive   State = "task"
)

type Tab string

const (
	TabOverview Tab = "overview"
	TabTasks    Tab = "tasks"
)

type Catalog interface {
	Lesson(id course.LessonID) (course.Lesson, bool)
	Task(id course.TaskID) (course.Task, bool)
}

type Completion interface {
	IsLessonCompleted(id course.LessonID) bool
}

// Engine is the submission engine as seen from navigation.
type Engine interface {
	Activate(task course.Task) uint64
	Deactivate()
	Load(ctx context.Context) error
}

type Countdown interface {
	Start(id course.LessonID, fire func(course.LessonID))
	Cancel()
}

type Config struct {
	Catalog    Catalog
	Policy     unlock.Policy
	Viewer     unlock.Viewer
	Gate       func() course.Gate
	Completion Completion
	Engine     Engine
	Timer      Countdown
	// OnDwell runs when a lesson's countdown expires.
	OnDwell func(course.LessonID)
	Log     *logger.Logger
}

type Controller struct {
	cfg Config
	log *logger.Logger

	mu     sync.Mutex
	state  State
	lesson course.LessonID
	task   course.TaskID
	tab    Tab
	gen    uint64
}

func New(cfg Config) *Controller {
	if cfg.Gate == nil {
		cfg.Gate = func() course.Gate { return course.Progress{}.Gate() }
	}
	if cfg.OnDwell == nil {
		cfg.OnDwell = func(course.LessonID) {}
	}
	return &Controller{cfg: cfg, log: logger.OrNop(cfg.Log), state: Idle, tab: TabOverview}
}

// SelectLesson opens a lesson. A locked lesson leaves the state untouched.
func (c *Controller) SelectLesson(id course.LessonID) error {
	l, ok := c.cfg.Catalog.Lesson(id)
	if !ok {
		return ErrUnknownItem
	}
	if !c.cfg.Policy.LessonUnlocked(l, c.cfg.Viewer, c.cfg.Gate()) {
		return ErrLocked
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.lesson, c.task, c.tab = LessonActive, id, 0, TabOverview
	c.gen++
	if c.cfg.Engine != nil {
		c.cfg.Engine.Deactivate()
	}
	c.armTimerLocked(l)
	return nil
}

func (c *Controller) armTimerLocked(l course.Lesson) {
	if c.cfg.Timer == nil {
		return
	}
	c.cfg.Timer.Cancel()
	kind := video.Classify(l.VideoURL).Kind
	done := c.cfg.Completion != nil && c.cfg.Completion.IsLessonCompleted(l.ID)
	if autocomplete.ShouldAttach(kind, done) {
		c.cfg.Timer.Start(l.ID, c.cfg.OnDwell)
	}
}

// SelectTask opens a task and, for multiple choice and theory tasks, loads
// the learner's earlier submission. A failed load leaves the task open with
// an empty form.
func (c *Controller) SelectTask(ctx context.Context, id course.TaskID) error {
	t, ok := c.cfg.Catalog.Task(id)
	if !ok {
		return ErrUnknownItem
	}
	if !c.cfg.Policy.TaskUnlocked(t, c.cfg.Viewer, c.cfg.Gate()) {
		return ErrLocked
	}

	c.mu.Lock()
	c.state, c.task, c.lesson, c.tab = TaskActive, id, 0, TabTasks
	c.gen++
	if c.cfg.Timer != nil {
		c.cfg.Timer.Cancel()
	}
	if c.cfg.Engine != nil {
		c.cfg.Engine.Activate(t)
	}
	c.mu.Unlock()

	if c.cfg.Engine == nil {
		return nil
	}
	switch t.Payload.(type) {
	case course.MCQ, course.Theory:
		if err := c.cfg.Engine.Load(ctx); err != nil {
			c.log.Warn("loading earlier submission failed", "task_id", id, "error", err)
		}
	case course.Coding:
	}
	return nil
}

// SetTab switches the lesson view tab.
func (c *Controller) SetTab(tab Tab) error {
	switch tab {
	case TabOverview, TabTasks:
	default:
		return ErrUnknownTab
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
	return nil
}

// Close stops the countdown and drops the active flow.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Timer != nil {
		c.cfg.Timer.Cancel()
	}
	if c.cfg.Engine != nil {
		c.cfg.Engine.Deactivate()
	}
	c.state, c.lesson, c.task = Idle, 0, 0
	c.gen++
}

// Active is a snapshot of the selection. At most one of LessonID and TaskID
// is set.
type Active struct {
	State      State            `json:"state"`
	LessonID   *course.LessonID `json:"lessonId,omitempty"`
	TaskID     *course.TaskID   `json:"taskId,omitempty"`
	Tab        Tab              `json:"tab"`
	Generation uint64           `json:"generation"`
}

func (c *Controller) Active() Active {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := Active{State: c.state, Tab: c.tab, Generation: c.gen}
	switch c.state {
	case LessonActive:
		id := c.lesson
		a.LessonID = &id
	case TaskActive:
		id := c.task
		a.TaskID = &id
	}
	return a
}

// Generation increments on every transition.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
