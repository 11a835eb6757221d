// Package submission runs the per-task submission workflows: coding runs
// against a sandbox, graded multiple choice, and uploaded theory work.
//
// One Engine serves one learner session and holds view state for the active
// task only. Every reply is checked against the generation captured when its
// request went out; replies for a task the learner has since left are
// dropped with ErrStale.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/executor"
	"github.com/mind-engage/mindengage-learn/internal/grading"
	"github.com/mind-engage/mindengage-learn/internal/notify"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/storage"
)

var (
	ErrNoActiveTask     = errors.New("submission: no task of that type is active")
	ErrStale            = errors.New("submission: task changed while the request was in flight")
	ErrBusy             = errors.New("submission: a request for this task is already in flight")
	ErrTestsNotPassing  = errors.New("submission: not every test case passes")
	ErrUnknownLanguage  = errors.New("submission: unsupported language")
	ErrIncomplete       = errors.New("submission: not every question is answered")
	ErrInvalidOption    = errors.New("submission: option must be one of A, B, C, D")
	ErrUnknownQuestion  = errors.New("submission: question is not part of this task")
	ErrAlreadySubmitted = errors.New("submission: already submitted")
	ErrRetryUnavailable = errors.New("submission: no retry available")
	ErrNoFile           = errors.New("submission: no file chosen")
	ErrNotSubmitted     = errors.New("submission: nothing submitted yet")
)

// API is the slice of the backend the learner flows call.
type API interface {
	MCQSubmission(ctx context.Context, taskID course.TaskID) (course.MCQSubmission, error)
	SubmitMCQ(ctx context.Context, taskID course.TaskID, answers map[course.QuestionID]string) (course.MCQSubmission, error)
	TheorySubmission(ctx context.Context, taskID course.TaskID) (course.TheorySubmission, error)
	SubmitTheory(ctx context.Context, taskID course.TaskID, fileName string, r io.Reader) (course.TheorySubmission, error)
	DownloadTheory(ctx context.Context, id course.SubmissionID) (io.ReadCloser, error)
}

type Executor interface {
	Execute(ctx context.Context, lang executor.Language, source, stdin string) (executor.Output, error)
}

// Tasks is the completion side of the progress tracker.
type Tasks interface {
	MarkTaskComplete(ctx context.Context, id course.TaskID) error
	RecordTaskPassed(id course.TaskID)
	IsTaskCompleted(id course.TaskID) bool
}

type Config struct {
	API      API
	Exec     Executor
	Tasks    Tasks
	Blobs    storage.BlobStore
	Grader   grading.Strategy
	Notifier notify.Notifier
	Log      *logger.Logger
	// Subject namespaces cached downloads per learner.
	Subject string
}

type Engine struct {
	api     API
	exec    Executor
	tasks   Tasks
	blobs   storage.BlobStore
	grader  grading.Strategy
	notes   notify.Notifier
	log     *logger.Logger
	subject string

	mu     sync.Mutex
	gen    uint64
	coding *CodingFlow
	mcq    *MCQFlow
	theory *TheoryFlow
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		api:     cfg.API,
		exec:    cfg.Exec,
		tasks:   cfg.Tasks,
		blobs:   cfg.Blobs,
		grader:  cfg.Grader,
		notes:   cfg.Notifier,
		log:     logger.OrNop(cfg.Log),
		subject: cfg.Subject,
	}
	if e.grader == nil {
		e.grader = grading.ExactOutput{}
	}
	if e.notes == nil {
		e.notes = notify.Discard
	}
	return e
}

// Activate replaces the active flow with a fresh one for task and returns
// the new generation. Any reply still in flight for the old task is dropped
// when it lands.
func (e *Engine) Activate(task course.Task) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.coding, e.mcq, e.theory = nil, nil, nil
	switch p := task.Payload.(type) {
	case course.Coding:
		e.coding = newCodingFlow(e, task, p)
	case course.MCQ:
		e.mcq = newMCQFlow(e, task, p)
	case course.Theory:
		e.theory = &TheoryFlow{e: e, task: task}
	}
	return e.gen
}

// Deactivate drops the active flow, e.g. when a lesson is selected.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.coding, e.mcq, e.theory = nil, nil, nil
}

func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Load fetches whatever the learner already submitted for the active task.
// Coding tasks have nothing to fetch.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	mcq, theory := e.mcq, e.theory
	e.mu.Unlock()
	switch {
	case mcq != nil:
		return mcq.Load(ctx)
	case theory != nil:
		return theory.Load(ctx)
	}
	return nil
}

func (e *Engine) Coding() (*CodingFlow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.coding == nil {
		return nil, ErrNoActiveTask
	}
	return e.coding, nil
}

func (e *Engine) MCQ() (*MCQFlow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mcq == nil {
		return nil, ErrNoActiveTask
	}
	return e.mcq, nil
}

func (e *Engine) Theory() (*TheoryFlow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.theory == nil {
		return nil, ErrNoActiveTask
	}
	return e.theory, nil
}

// current reports whether gen is still the live generation. Callers hold mu.
func (e *Engine) current(gen uint64) bool { return e.gen == gen }

// View is the serializable state of the active flow. Exactly one of the
// flow fields is set when a task is active.
type View struct {
	TaskID *course.TaskID  `json:"taskId,omitempty"`
	Kind   course.TaskKind `json:"kind,omitempty"`
	Coding *CodingView     `json:"coding,omitempty"`
	MCQ    *MCQView        `json:"mcq,omitempty"`
	Theory *TheoryView     `json:"theory,omitempty"`
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	var v View
	switch {
	case e.coding != nil:
		cv := e.coding.viewLocked()
		v = View{Kind: course.KindCoding, Coding: &cv}
		v.TaskID = idPtr(e.coding.task.ID)
	case e.mcq != nil:
		mv := e.mcq.viewLocked()
		v = View{Kind: course.KindMCQ, MCQ: &mv}
		v.TaskID = idPtr(e.mcq.task.ID)
	case e.theory != nil:
		tv := e.theory.viewLocked()
		v = View{Kind: course.KindTheory, Theory: &tv}
		v.TaskID = idPtr(e.theory.task.ID)
	}
	return v
}

func idPtr(id course.TaskID) *course.TaskID { return &id }

func staleErr(id course.TaskID) error {
	return fmt.Errorf("task %d: %w", id, ErrStale)
}
