package grading

import (
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-learn/internal/course"
)

func TestReviewStatusBoundary(t *testing.T) {
	cases := []struct {
		pct  float64
		want course.TheoryStatus
	}{
		{60, course.TheoryPass},
		{59.9, course.TheoryFail},
		{100, course.TheoryPass},
		{0, course.TheoryFail},
	}
	for _, c := range cases {
		if got := ReviewStatus(c.pct); got != c.want {
			t.Errorf("ReviewStatus(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}

func TestValidatePercentage(t *testing.T) {
	if ValidatePercentage(-1) == nil || ValidatePercentage(100.5) == nil {
		t.Fatal("out of range accepted")
	}
	if err := ValidatePercentage(59.9); err != nil {
		t.Fatal(err)
	}
}

func TestPercentAndPassed(t *testing.T) {
	if p := Percent(1, 2); p != 50 || Passed(p) {
		t.Fatalf("1/2 = %v passed=%v", p, Passed(p))
	}
	if Percent(3, 0) != 0 {
		t.Fatal("zero total")
	}
}

func TestExactOutput(t *testing.T) {
	tc := course.TestCase{Input: "2 3", ExpectedOutput: "5\n"}
	g := ExactOutput{}

	if r := g.Grade(tc, Run{Ran: true, Stdout: "5\n"}); !r.Passed || r.Expected != "5" {
		t.Fatalf("trimmed match failed: %+v", r)
	}
	if r := g.Grade(tc, Run{Ran: true, Stdout: "6"}); r.Passed || r.Actual != "6" {
		t.Fatalf("mismatch passed: %+v", r)
	}
	r := g.Grade(tc, Run{Ran: true, Stderr: "NameError: x\n"})
	if r.Passed || r.Actual != "Error: NameError: x" {
		t.Fatalf("stderr run: %+v", r)
	}
	// stderr next to real output is just noise
	if r := g.Grade(tc, Run{Ran: true, Stdout: "5", Stderr: "warning"}); !r.Passed {
		t.Fatalf("stderr with stdout: %+v", r)
	}
	if r := g.Grade(tc, Run{Message: "runtime unknown"}); r.Passed || r.Actual != "runtime unknown" {
		t.Fatalf("no run: %+v", r)
	}
	if r := g.Grade(tc, Run{}); r.Actual != "Unknown execution error" {
		t.Fatalf("no run, no message: %+v", r)
	}
}

func TestFailedAndAllPassed(t *testing.T) {
	r := Failed(course.TestCase{Input: "x", ExpectedOutput: "y"}, errors.New("timeout"))
	if r.Passed || r.Actual != "Execution failed: timeout" {
		t.Fatalf("%+v", r)
	}
	if AllPassed(nil) {
		t.Fatal("empty results must not pass")
	}
	if AllPassed([]course.TestResult{{Passed: true}, r}) {
		t.Fatal("failure ignored")
	}
	if !AllPassed([]course.TestResult{{Passed: true}}) {
		t.Fatal("all passed")
	}
}
