// Package autocomplete completes lessons whose video source cannot report
// playback, after the learner has kept the lesson open for a fixed dwell time.
package autocomplete

import (
	"sync"
	"time"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/video"
)

const DefaultDwell = 30 * time.Second

// Stopper is the handle returned by Clock.AfterFunc.
type Stopper interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// ShouldAttach reports whether a countdown applies to a lesson.
func ShouldAttach(k video.Kind, completed bool) bool {
	return k == video.HostedDocument && !completed
}

// Timer owns at most one live countdown.
type Timer struct {
	dwell time.Duration
	clock Clock
	now   func() time.Time

	mu      sync.Mutex
	seq     uint64
	live    Stopper
	lesson  course.LessonID
	armed   bool
	started time.Time
}

func New(dwell time.Duration, clock Clock) *Timer {
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Timer{dwell: dwell, clock: clock, now: time.Now}
}

// Start cancels any running countdown and begins a fresh one for lessonID.
// fire runs at most once, on the clock's goroutine.
func (t *Timer) Start(lessonID course.LessonID, fire func(course.LessonID)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.seq++
	seq := t.seq
	t.lesson, t.armed, t.started = lessonID, true, t.now()
	t.live = t.clock.AfterFunc(t.dwell, func() {
		t.mu.Lock()
		if !t.armed || t.seq != seq {
			t.mu.Unlock()
			return
		}
		t.armed, t.live = false, nil
		t.mu.Unlock()
		fire(lessonID)
	})
}

func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.live != nil {
		t.live.Stop()
		t.live = nil
	}
	t.armed = false
}

// Active returns the lesson with a running countdown.
func (t *Timer) Active() (course.LessonID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lesson, t.armed
}

// Remaining returns the lesson with a running countdown and the time left
// on it, never negative.
func (t *Timer) Remaining() (course.LessonID, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return 0, 0, false
	}
	left := t.dwell - t.now().Sub(t.started)
	if left < 0 {
		left = 0
	}
	return t.lesson, left, true
}

func (t *Timer) Dwell() time.Duration { return t.dwell }
