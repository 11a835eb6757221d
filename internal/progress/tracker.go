// Package progress owns the learner's completion state for one course:
// which lessons are done, which tasks are done, and the last aggregate the
// backend reported.
package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
)

type API interface {
	Progress(ctx context.Context, courseID course.CourseID) (course.Progress, error)
	CompleteLesson(ctx context.Context, courseID course.CourseID, lessonID course.LessonID) error
	CompleteTask(ctx context.Context, taskID course.TaskID) error
}

// Journal persists lesson completions the backend has not acknowledged, so
// they survive the session and can be replayed.
type Journal interface {
	LessonFailed(ctx context.Context, k Key, lessonID course.LessonID, cause error) error
	LessonConfirmed(ctx context.Context, k Key, lessonID course.LessonID) error
	Unconfirmed(ctx context.Context, k Key) ([]course.LessonID, error)
}

// Key identifies one learner's enrollment.
type Key struct {
	Subject  string
	CourseID course.CourseID
}

type Config struct {
	Key          Key
	TotalLessons int
	Tasks        []course.Task
	API          API
	Journal      Journal
	Notifier     notify.Notifier
	Log          *logger.Logger
}

// Tracker is the only writer of completion state. Lessons move
// pending → confirmed on a successful call, or pending → failed otherwise;
// a failed lesson still reads as completed and is retried by Reconcile.
type Tracker struct {
	key     Key
	total   int
	api     API
	journal Journal
	notes   notify.Notifier
	log     *logger.Logger

	mu        sync.Mutex
	confirmed map[course.LessonID]struct{}
	pending   map[course.LessonID]struct{}
	failed    map[course.LessonID]struct{}
	tasks     map[course.TaskID]bool
	progress  course.Progress
	loaded    bool
	issued    uint64 // progress fetch tickets handed out
	applied   uint64 // newest ticket whose result was applied
}

func NewTracker(cfg Config) *Tracker {
	t := &Tracker{
		key:       cfg.Key,
		total:     cfg.TotalLessons,
		api:       cfg.API,
		journal:   cfg.Journal,
		notes:     cfg.Notifier,
		log:       logger.OrNop(cfg.Log).With("course_id", cfg.Key.CourseID),
		confirmed: map[course.LessonID]struct{}{},
		pending:   map[course.LessonID]struct{}{},
		failed:    map[course.LessonID]struct{}{},
		tasks:     make(map[course.TaskID]bool, len(cfg.Tasks)),
		progress:  course.ZeroProgress(cfg.Key.CourseID, cfg.TotalLessons),
	}
	if t.notes == nil {
		t.notes = notify.Discard
	}
	for _, task := range cfg.Tasks {
		t.tasks[task.ID] = task.Completed
	}
	return t
}

// Restore loads completions left unacknowledged by an earlier session into
// the failed bucket.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.journal == nil {
		return nil
	}
	ids, err := t.journal.Unconfirmed(ctx, t.key)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.confirmed[id]; !ok {
			t.failed[id] = struct{}{}
		}
	}
	return nil
}

// MarkLessonComplete records the lesson as completed locally before calling
// the backend. A lesson already confirmed or in flight is left alone.
func (t *Tracker) MarkLessonComplete(ctx context.Context, id course.LessonID) error {
	t.mu.Lock()
	if _, ok := t.confirmed[id]; ok {
		t.mu.Unlock()
		return nil
	}
	if _, ok := t.pending[id]; ok {
		t.mu.Unlock()
		return nil
	}
	_, retry := t.failed[id]
	delete(t.failed, id)
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	if !retry {
		t.notes.Notify(notify.Success, "Lesson Completed!")
	}
	if err := t.confirm(ctx, id); err != nil {
		t.notes.Notify(notify.Error, "Failed to save progress")
		return err
	}
	if err := t.Refresh(ctx); err != nil {
		t.log.Warn("progress refresh after completion failed", "lesson_id", id, "error", err)
	}
	return nil
}

// confirm performs the completion call for a lesson already in pending.
func (t *Tracker) confirm(ctx context.Context, id course.LessonID) error {
	err := t.api.CompleteLesson(ctx, t.key.CourseID, id)

	t.mu.Lock()
	delete(t.pending, id)
	if err != nil {
		if _, done := t.confirmed[id]; !done {
			t.failed[id] = struct{}{}
		}
	} else {
		t.confirmed[id] = struct{}{}
	}
	t.mu.Unlock()

	if t.journal != nil {
		var jerr error
		if err != nil {
			jerr = t.journal.LessonFailed(ctx, t.key, id, err)
		} else {
			jerr = t.journal.LessonConfirmed(ctx, t.key, id)
		}
		if jerr != nil {
			t.log.Error("completion journal write failed", "lesson_id", id, "error", jerr)
		}
	}
	if err != nil {
		t.log.Warn("lesson completion not saved", "lesson_id", id, "error", err)
	}
	return err
}

// Refresh fetches the aggregate and replaces the previous one wholesale.
// When the backend refuses (non-learner roles) or nothing has been loaded
// yet, the zeroed default is used and no error is reported.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.issued++
	ticket := t.issued
	t.mu.Unlock()

	p, err := t.api.Progress(ctx, t.key.CourseID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket < t.applied {
		return nil // a newer fetch already landed
	}
	if err != nil {
		if apierr.IsForbidden(err) || apierr.IsNotFound(err) || !t.loaded {
			t.log.Debug("progress unavailable, using defaults", "error", err)
			t.progress = course.ZeroProgress(t.key.CourseID, t.total)
			t.loaded = true
			t.applied = ticket
			return nil
		}
		return err
	}
	if p.CompletedLessonIDs == nil {
		p.CompletedLessonIDs = []course.LessonID{}
	}
	t.progress = p
	t.loaded = true
	t.applied = ticket
	for _, id := range p.CompletedLessonIDs {
		t.confirmed[id] = struct{}{}
		delete(t.failed, id)
	}
	return nil
}

// Reconcile retries every failed lesson the server still does not report
// as completed. It returns how many were saved.
func (t *Tracker) Reconcile(ctx context.Context) (int, error) {
	t.mu.Lock()
	ids := make([]course.LessonID, 0, len(t.failed))
	for id := range t.failed {
		ids = append(ids, id)
		t.pending[id] = struct{}{}
	}
	for _, id := range ids {
		delete(t.failed, id)
	}
	t.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	saved := 0
	var firstErr error
	for _, id := range ids {
		if err := t.confirm(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved++
	}
	if saved > 0 {
		if err := t.Refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return saved, firstErr
}

// HasFailures reports whether any completion awaits reconciliation.
func (t *Tracker) HasFailures() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failed) > 0
}

// MarkTaskComplete completes a coding task. Unlike lessons this is not
// optimistic: the flag flips only after the backend accepts it.
func (t *Tracker) MarkTaskComplete(ctx context.Context, id course.TaskID) error {
	t.mu.Lock()
	done := t.tasks[id]
	t.mu.Unlock()
	if done {
		return nil
	}
	if err := t.api.CompleteTask(ctx, id); err != nil {
		t.log.Warn("task completion failed", "task_id", id, "error", err)
		t.notes.Notify(notify.Error, "Failed to save completion")
		return err
	}
	t.RecordTaskPassed(id)
	t.notes.Notify(notify.Success, "Task completed! Great job!")
	return nil
}

// RecordTaskPassed flips a task's completed flag after the backend graded
// it as passed.
func (t *Tracker) RecordTaskPassed(id course.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = true
}

func (t *Tracker) IsLessonCompleted(id course.LessonID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedLocked(id)
}

func (t *Tracker) completedLocked(id course.LessonID) bool {
	if _, ok := t.confirmed[id]; ok {
		return true
	}
	if _, ok := t.pending[id]; ok {
		return true
	}
	_, ok := t.failed[id]
	return ok
}

func (t *Tracker) IsTaskCompleted(id course.TaskID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tasks[id]
}

func (t *Tracker) Progress() course.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	Progress  course.Progress   `json:"progress"`
	Completed []course.LessonID `json:"completedLessonIds"`
	Pending   []course.LessonID `json:"pendingLessonIds"`
	Failed    []course.LessonID `json:"unsavedLessonIds"`
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Progress: t.progress,
		Pending:  sortedIDs(t.pending),
		Failed:   sortedIDs(t.failed),
	}
	all := make(map[course.LessonID]struct{}, len(t.confirmed)+len(t.pending)+len(t.failed))
	for _, m := range []map[course.LessonID]struct{}{t.confirmed, t.pending, t.failed} {
		for id := range m {
			all[id] = struct{}{}
		}
	}
	s.Completed = sortedIDs(all)
	return s
}

func sortedIDs(m map[course.LessonID]struct{}) []course.LessonID {
	out := make([]course.LessonID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
