package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
)

type MCQFlow struct {
	e         *Engine
	task      course.Task
	questions []course.Question

	// guarded by e.mu
	answers  map[course.QuestionID]string
	result   *course.MCQSubmission
	loaded   bool
	inFlight bool
}

func newMCQFlow(e *Engine, task course.Task, p course.MCQ) *MCQFlow {
	return &MCQFlow{e: e, task: task, questions: p.Questions, answers: map[course.QuestionID]string{}}
}

type MCQView struct {
	Questions []course.Question            `json:"questions"`
	Answers   map[course.QuestionID]string `json:"answers"`
	Result    *course.MCQSubmission        `json:"result,omitempty"`
	Loaded    bool                         `json:"loaded"`
	CanSubmit bool                         `json:"canSubmit"`
	CanRetry  bool                         `json:"canRetry"`
}

func (f *MCQFlow) viewLocked() MCQView {
	answers := make(map[course.QuestionID]string, len(f.answers))
	for k, v := range f.answers {
		answers[k] = v
	}
	v := MCQView{
		Questions: f.questions,
		Answers:   answers,
		Loaded:    f.loaded,
		CanSubmit: f.canSubmitLocked(),
		CanRetry:  f.canRetryLocked(),
	}
	if f.result != nil {
		r := *f.result
		v.Result = &r
	}
	return v
}

// Load fetches an earlier submission. A 404 means the learner has not
// submitted yet and the question form stays up.
func (f *MCQFlow) Load(ctx context.Context) error {
	f.e.mu.Lock()
	gen := f.e.gen
	f.e.mu.Unlock()

	sub, err := f.e.api.MCQSubmission(ctx, f.task.ID)

	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if !f.e.current(gen) {
		return staleErr(f.task.ID)
	}
	if err != nil {
		if apierr.IsNotFound(err) {
			f.loaded = true
			return nil
		}
		f.e.log.Debug("mcq submission fetch failed", "task_id", f.task.ID, "error", err)
		return err
	}
	f.loaded = true
	s := sub.Normalize()
	f.result = &s
	if s.Passed {
		f.e.tasks.RecordTaskPassed(f.task.ID)
	}
	return nil
}

// Answer records option (A to D, any case) for question.
func (f *MCQFlow) Answer(question course.QuestionID, option string) error {
	option = strings.ToUpper(strings.TrimSpace(option))
	switch option {
	case "A", "B", "C", "D":
	default:
		return ErrInvalidOption
	}
	if !f.hasQuestion(question) {
		return ErrUnknownQuestion
	}
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if f.result != nil {
		return ErrAlreadySubmitted
	}
	f.answers[question] = option
	return nil
}

func (f *MCQFlow) hasQuestion(id course.QuestionID) bool {
	for _, q := range f.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// CanSubmit is true once every question has an answer, no result is shown
// and no submission is in flight.
func (f *MCQFlow) CanSubmit() bool {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	return f.canSubmitLocked()
}

func (f *MCQFlow) canSubmitLocked() bool {
	if f.result != nil || f.inFlight || len(f.questions) == 0 {
		return false
	}
	for _, q := range f.questions {
		if _, ok := f.answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

// Submit sends the answers for grading. The result replaces the form; a
// passing result flags the task completed.
func (f *MCQFlow) Submit(ctx context.Context) (course.MCQSubmission, error) {
	f.e.mu.Lock()
	if f.result != nil {
		f.e.mu.Unlock()
		return course.MCQSubmission{}, ErrAlreadySubmitted
	}
	if f.inFlight {
		f.e.mu.Unlock()
		return course.MCQSubmission{}, ErrBusy
	}
	if !f.canSubmitLocked() {
		f.e.mu.Unlock()
		return course.MCQSubmission{}, ErrIncomplete
	}
	gen := f.e.gen
	answers := make(map[course.QuestionID]string, len(f.answers))
	for k, v := range f.answers {
		answers[k] = v
	}
	f.inFlight = true
	f.e.mu.Unlock()

	sub, err := f.e.api.SubmitMCQ(ctx, f.task.ID, answers)

	f.e.mu.Lock()
	f.inFlight = false
	if err != nil {
		f.e.mu.Unlock()
		f.e.log.Warn("mcq submit failed", "task_id", f.task.ID, "error", err)
		f.e.notes.Notify(notify.Error, "Failed to submit answers")
		return course.MCQSubmission{}, err
	}
	if !f.e.current(gen) {
		f.e.mu.Unlock()
		if sub.Passed {
			f.e.tasks.RecordTaskPassed(f.task.ID)
		}
		return course.MCQSubmission{}, staleErr(f.task.ID)
	}
	s := sub.Normalize()
	f.result = &s
	f.e.mu.Unlock()

	if s.Passed {
		f.e.tasks.RecordTaskPassed(f.task.ID)
		f.e.notes.Notify(notify.Success, fmt.Sprintf("Passed with %.0f%%!", s.Percentage))
	} else {
		f.e.notes.Notify(notify.Info, fmt.Sprintf("Scored %.0f%%. %d attempt(s) left", s.Percentage, s.RemainingAttempts))
	}
	return s, nil
}

// CanRetry is true after a failed attempt while attempts remain.
func (f *MCQFlow) CanRetry() bool {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	return f.canRetryLocked()
}

func (f *MCQFlow) canRetryLocked() bool {
	return f.result != nil && !f.result.Terminal()
}

// Retry clears the answers and the shown result, returning to the form.
func (f *MCQFlow) Retry() error {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if !f.canRetryLocked() {
		return ErrRetryUnavailable
	}
	f.answers = map[course.QuestionID]string{}
	f.result = nil
	return nil
}
