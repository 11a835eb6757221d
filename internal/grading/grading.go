// Package grading holds the scoring rules shared by the learner flows and
// the reviewer workflow, so both sides derive the same verdicts.
package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-learn/internal/course"
)

// PassThreshold is the minimum percentage that counts as a pass for graded
// multiple-choice and theory work.
const PassThreshold = 60.0

var ErrPercentageRange = errors.New("grading: percentage out of range [0,100]")

// ReviewStatus derives the status a reviewer's percentage implies.
func ReviewStatus(percentage float64) course.TheoryStatus {
	if percentage >= PassThreshold {
		return course.TheoryPass
	}
	return course.TheoryFail
}

// ValidatePercentage rejects grades outside 0..100.
func ValidatePercentage(p float64) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: %.2f", ErrPercentageRange, p)
	}
	return nil
}

// Percent is correct/total as a percentage; zero when total is zero.
func Percent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) * 100 / float64(total)
}

func Passed(percentage float64) bool { return percentage >= PassThreshold }

// Run is what the sandbox produced for one test case. Ran is false when the
// sandbox returned no run section at all.
type Run struct {
	Ran     bool
	Stdout  string
	Stderr  string
	Message string
}

// Strategy turns a sandbox run into a test case verdict.
type Strategy interface {
	Grade(tc course.TestCase, r Run) course.TestResult
}

// ExactOutput compares trimmed stdout to the trimmed expected output.
type ExactOutput struct{}

func (ExactOutput) Grade(tc course.TestCase, r Run) course.TestResult {
	expected := strings.TrimSpace(tc.ExpectedOutput)
	res := course.TestResult{Input: tc.Input, Expected: expected}
	if !r.Ran {
		res.Actual = r.Message
		if res.Actual == "" {
			res.Actual = "Unknown execution error"
		}
		return res
	}
	actual := strings.TrimSpace(r.Stdout)
	if r.Stderr != "" && actual == "" {
		res.Actual = "Error: " + strings.TrimSpace(r.Stderr)
		return res
	}
	res.Actual = actual
	res.Passed = actual == expected
	return res
}

// Failed records a case that could not be executed at all.
func Failed(tc course.TestCase, err error) course.TestResult {
	return course.TestResult{
		Input:    tc.Input,
		Expected: strings.TrimSpace(tc.ExpectedOutput),
		Actual:   "Execution failed: " + err.Error(),
	}
}

// AllPassed is true only for a non-empty result list with no failures.
func AllPassed(results []course.TestResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
