package submission

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/executor"
	"github.com/mind-engage/mindengage-learn/internal/grading"
)

// DefaultStarterCode is loaded into the editor when a coding task ships
// without starter code.
const DefaultStarterCode = `# Write your Python code here
# Input is via stdin (input())
# Print output to stdout (print())

import sys

def solve():
    # read input
    data = sys.stdin.read().strip()
    # process

    # output
    print(data)

solve()`

type CodingFlow struct {
	e     *Engine
	task  course.Task
	cases []course.TestCase

	// guarded by e.mu
	lang    executor.Language
	code    string
	results []course.TestResult
	running bool
}

func newCodingFlow(e *Engine, task course.Task, p course.Coding) *CodingFlow {
	code := p.StarterCode
	if code == "" {
		code = DefaultStarterCode
	}
	lang, _ := executor.LookupLanguage("python")
	return &CodingFlow{e: e, task: task, cases: p.TestCases, lang: lang, code: code}
}

type CodingView struct {
	Language  executor.Language   `json:"language"`
	Languages []executor.Language `json:"languages"`
	Code      string              `json:"code"`
	TestCases int                 `json:"testCaseCount"`
	Results   []course.TestResult `json:"results"`
	Running   bool                `json:"running"`
	CanSubmit bool                `json:"canMarkComplete"`
	Completed bool                `json:"completed"`
}

func (f *CodingFlow) viewLocked() CodingView {
	return CodingView{
		Language:  f.lang,
		Languages: executor.Languages(),
		Code:      f.code,
		TestCases: len(f.cases),
		Results:   append([]course.TestResult(nil), f.results...),
		Running:   f.running,
		CanSubmit: grading.AllPassed(f.results),
		Completed: f.e.tasks.IsTaskCompleted(f.task.ID),
	}
}

// SetLanguage switches the runtime. Results of the previous language are
// discarded, including those of a run still in flight.
func (f *CodingFlow) SetLanguage(name string) error {
	lang, ok := executor.LookupLanguage(name)
	if !ok {
		return ErrUnknownLanguage
	}
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	if f.lang == lang {
		return nil
	}
	f.lang = lang
	f.results = nil
	f.e.gen++
	return nil
}

func (f *CodingFlow) SetCode(code string) {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	f.code = code
}

// Run executes the current code against every test case, one at a time in
// declaration order. A case the sandbox could not execute is recorded as a
// failure and the remaining cases still run.
func (f *CodingFlow) Run(ctx context.Context) ([]course.TestResult, error) {
	f.e.mu.Lock()
	if f.running {
		f.e.mu.Unlock()
		return nil, ErrBusy
	}
	gen := f.e.gen
	lang, code := f.lang, f.code
	f.running = true
	f.results = nil
	f.e.mu.Unlock()

	results := make([]course.TestResult, 0, len(f.cases))
	var runErr error
	for _, tc := range f.cases {
		out, err := f.e.exec.Execute(ctx, lang, code, tc.Input)
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = ctxErr
			break
		}
		if err != nil {
			f.e.log.Warn("test case execution failed", "task_id", f.task.ID, "language", lang.Name, "error", err)
			results = append(results, grading.Failed(tc, err))
			continue
		}
		results = append(results, f.e.grader.Grade(tc, toRun(out)))
	}

	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	f.running = false
	if runErr != nil {
		return nil, runErr
	}
	if !f.e.current(gen) {
		return nil, staleErr(f.task.ID)
	}
	f.results = results
	return append([]course.TestResult(nil), results...), nil
}

func toRun(out executor.Output) grading.Run {
	if out.Run == nil {
		return grading.Run{Message: out.Message}
	}
	return grading.Run{Ran: true, Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}
}

// CanMarkComplete is true only after a run in which every case passed.
func (f *CodingFlow) CanMarkComplete() bool {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	return grading.AllPassed(f.results)
}

func (f *CodingFlow) MarkComplete(ctx context.Context) error {
	if !f.CanMarkComplete() {
		return ErrTestsNotPassing
	}
	if err := f.e.tasks.MarkTaskComplete(ctx, f.task.ID); err != nil {
		return fmt.Errorf("mark task complete: %w", err)
	}
	return nil
}
