// Package session wires the per-course learner state machine together: the
// catalog outline, drip policy, completion tracker, submission engine,
// selection and auto-complete countdown, for one learner and one course.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-learn/internal/autocomplete"
	"github.com/mind-engage/mindengage-learn/internal/catalog"
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/progress"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/selection"
	"github.com/mind-engage/mindengage-learn/internal/storage"
	"github.com/mind-engage/mindengage-learn/internal/submission"
	"github.com/mind-engage/mindengage-learn/internal/unlock"
)

// Backend is everything a session calls on the REST backend, already bound
// to the learner's token.
type Backend interface {
	Lessons(ctx context.Context, courseID course.CourseID) ([]course.Lesson, error)
	Tasks(ctx context.Context, courseID course.CourseID) ([]course.Task, error)
	progress.API
	submission.API
}

// Identity is the caller as the backend token describes it.
type Identity struct {
	Subject string
	Role    course.Role
	Token   string
}

type Deps struct {
	// Backend binds a backend client to a learner token.
	Backend func(token string) Backend
	Exec    submission.Executor
	Journal progress.Journal
	Blobs   storage.BlobStore
	Checker *rbac.Checker
	Policy  unlock.Policy

	Dwell     time.Duration
	NotifyTTL time.Duration
	// CallTimeout bounds backend calls made outside a request, such as the
	// dwell-triggered completion.
	CallTimeout time.Duration
	Clock       autocomplete.Clock
	Log         *logger.Logger
}

type Session struct {
	ID       string
	Identity Identity
	CourseID course.CourseID

	deps    Deps
	log     *logger.Logger
	outline catalog.Outline
	viewer  unlock.Viewer
	tracker *progress.Tracker
	engine  *submission.Engine
	sel     *selection.Controller
	timer   *autocomplete.Timer
	notes   *notify.Center

	// tokenSum binds the session to the exact token it was opened with.
	tokenSum [blake2b.Size256]byte

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// Open loads the course for the caller and selects the first lesson the
// caller may open.
func Open(ctx context.Context, id string, deps Deps, who Identity, courseID course.CourseID) (*Session, error) {
	if deps.Checker == nil {
		deps.Checker = rbac.Default()
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 15 * time.Second
	}
	log := logger.OrNop(deps.Log).With("session_id", id, "course_id", courseID)
	api := deps.Backend(who.Token)

	var (
		lessons []course.Lesson
		tasks   []course.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = api.Lessons(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = api.Tasks(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn("course content load failed", "error", err)
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}

	s := &Session{
		ID:       id,
		Identity: who,
		CourseID: courseID,
		deps:     deps,
		log:      log,
		outline:  catalog.Build(lessons, tasks),
		viewer:   unlock.ViewerFor(deps.Checker, who.Role),
		notes:    notify.NewCenter(deps.NotifyTTL),
		tokenSum: blake2b.Sum256([]byte(who.Token)),
		lastSeen: time.Now(),
	}
	s.tracker = progress.NewTracker(progress.Config{
		Key:          progress.Key{Subject: who.Subject, CourseID: courseID},
		TotalLessons: len(lessons),
		Tasks:        tasks,
		API:          api,
		Journal:      deps.Journal,
		Notifier:     s.notes,
		Log:          log,
	})
	s.engine = submission.NewEngine(submission.Config{
		API:      api,
		Exec:     deps.Exec,
		Tasks:    s.tracker,
		Blobs:    deps.Blobs,
		Notifier: s.notes,
		Log:      log,
		Subject:  who.Subject,
	})
	s.timer = autocomplete.New(deps.Dwell, deps.Clock)
	s.sel = selection.New(selection.Config{
		Catalog:    s.outline,
		Policy:     deps.Policy,
		Viewer:     s.viewer,
		Gate:       func() course.Gate { return s.tracker.Progress().Gate() },
		Completion: s.tracker,
		Engine:     s.engine,
		Timer:      s.timer,
		OnDwell:    s.dwellElapsed,
		Log:        log,
	})

	if err := s.tracker.Restore(ctx); err != nil {
		log.Warn("completion journal restore failed", "error", err)
	}
	if err := s.tracker.Refresh(ctx); err != nil {
		log.Warn("initial progress fetch failed", "error", err)
	}
	if s.tracker.HasFailures() {
		if _, err := s.tracker.Reconcile(ctx); err != nil {
			log.Debug("reconcile on open incomplete", "error", err)
		}
	}
	s.selectFirstLesson()
	return s, nil
}

func (s *Session) selectFirstLesson() {
	gate := s.tracker.Progress().Gate()
	for _, l := range s.outline.Lessons() {
		if s.deps.Policy.LessonUnlocked(l, s.viewer, gate) {
			if err := s.sel.SelectLesson(l.ID); err != nil {
				s.log.Debug("initial lesson selection failed", "lesson_id", l.ID, "error", err)
			}
			return
		}
	}
}

// dwellElapsed runs on the timer goroutine once a lesson stayed open for
// the full dwell.
func (s *Session) dwellElapsed(id course.LessonID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.CallTimeout)
	defer cancel()
	s.log.Debug("dwell elapsed, completing lesson", "lesson_id", id)
	if err := s.tracker.MarkLessonComplete(ctx, id); err != nil {
		s.log.Warn("auto completion failed", "lesson_id", id, "error", err)
	}
}

func (s *Session) SelectLesson(id course.LessonID) error {
	s.touch()
	return s.sel.SelectLesson(id)
}

func (s *Session) SelectTask(ctx context.Context, id course.TaskID) error {
	s.touch()
	return s.sel.SelectTask(ctx, id)
}

func (s *Session) SetTab(tab selection.Tab) error {
	s.touch()
	return s.sel.SetTab(tab)
}

// CompleteLesson is the explicit "mark complete" action. The lesson must be
// open to the caller; a running countdown for it is stopped.
func (s *Session) CompleteLesson(ctx context.Context, id course.LessonID) error {
	s.touch()
	l, ok := s.outline.Lesson(id)
	if !ok {
		return selection.ErrUnknownItem
	}
	if !s.deps.Policy.LessonUnlocked(l, s.viewer, s.tracker.Progress().Gate()) {
		return selection.ErrLocked
	}
	if active, ok := s.timer.Active(); ok && active == id {
		s.timer.Cancel()
	}
	return s.tracker.MarkLessonComplete(ctx, id)
}

func (s *Session) Engine() *submission.Engine {
	s.touch()
	return s.engine
}

func (s *Session) Tracker() *progress.Tracker { return s.tracker }

func (s *Session) DismissNotification(id string) bool {
	s.touch()
	return s.notes.Dismiss(id)
}

// Reconcile retries completions the backend has not acknowledged.
func (s *Session) Reconcile(ctx context.Context) (int, error) {
	if !s.tracker.HasFailures() {
		return 0, nil
	}
	return s.tracker.Reconcile(ctx)
}

// Close stops the countdown. Pending journal entries stay for the next
// session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.sel.Close()
}

// ownedBy reports whether who is the caller that opened the session: same
// subject and the same bearer token.
func (s *Session) ownedBy(who Identity) bool {
	if who.Subject != s.Identity.Subject {
		return false
	}
	sum := blake2b.Sum256([]byte(who.Token))
	return subtle.ConstantTimeCompare(sum[:], s.tokenSum[:]) == 1
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
