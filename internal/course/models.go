package course

import (
	"math"
	"strings"
)

type (
	CourseID     int64
	LessonID     int64
	TaskID       int64
	QuestionID   int64
	SubmissionID int64
)

// UnboundedDays stands in for a daysElapsed value the backend did not send.
const UnboundedDays = math.MaxInt32

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts any casing; unknown roles come back as-is, upper-cased.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

type Lesson struct {
	ID        LessonID `json:"id"`
	Title     string   `json:"title"`
	VideoURL  string   `json:"videoUrl"`
	DayNumber int      `json:"dayNumber,omitempty"`
	Order     int      `json:"lessonOrder"`
}

// Day is the drip day with the missing-day default applied.
func (l Lesson) Day() int { return normalizeDay(l.DayNumber) }

func normalizeDay(d int) int {
	if d < 1 {
		return 1
	}
	return d
}

// Progress is the server-computed aggregate for one enrollment.
type Progress struct {
	CourseID           CourseID   `json:"courseId"`
	CompletedLessons   int        `json:"completedLessons"`
	TotalLessons       int        `json:"totalLessons"`
	ProgressPercentage float64    `json:"progressPercentage"`
	CompletedLessonIDs []LessonID `json:"completedLessonIds"`
	CurrentDay         *int       `json:"currentDay,omitempty"`
	DaysElapsed        *int       `json:"daysElapsed,omitempty"`
}

// ZeroProgress is what a viewer sees when the backend refuses to report
// progress (teachers, admins, unenrolled previews).
func ZeroProgress(courseID CourseID, totalLessons int) Progress {
	return Progress{CourseID: courseID, TotalLessons: totalLessons, CompletedLessonIDs: []LessonID{}}
}

// Gate holds the two day counters the drip schedule compares against.
type Gate struct {
	CurrentDay  int `json:"currentDay"`
	DaysElapsed int `json:"daysElapsed"`
	// ElapsedKnown is false when the backend omitted daysElapsed.
	ElapsedKnown bool `json:"elapsedKnown"`
}

func (p Progress) Gate() Gate {
	g := Gate{CurrentDay: 1, DaysElapsed: UnboundedDays}
	if p.CurrentDay != nil {
		g.CurrentDay = *p.CurrentDay
	}
	if p.DaysElapsed != nil {
		g.DaysElapsed = *p.DaysElapsed
		g.ElapsedKnown = true
	}
	return g
}

type MCQSubmission struct {
	ID                SubmissionID `json:"id"`
	TaskID            TaskID       `json:"taskId"`
	AttemptNumber     int          `json:"attemptNumber"`
	CorrectAnswers    int          `json:"correctAnswers"`
	TotalQuestions    int          `json:"totalQuestions"`
	Percentage        float64      `json:"percentage"`
	Passed            bool         `json:"passed"`
	RemainingAttempts int          `json:"remainingAttempts"`
	SubmittedAt       string       `json:"submittedAt,omitempty"`
}

// MaxMCQAttempts is the attempt ceiling for graded multiple-choice tasks.
const MaxMCQAttempts = 2

// Normalize bounds RemainingAttempts by what AttemptNumber allows. The
// backend's read path returns the best attempt, whose number can be lower
// than the attempts actually used, together with a count derived from the
// total; the smaller of the two wins.
func (s MCQSubmission) Normalize() MCQSubmission {
	left := max(0, MaxMCQAttempts-s.AttemptNumber)
	s.RemainingAttempts = max(0, min(s.RemainingAttempts, left))
	return s
}

// Terminal reports whether no further attempt may be made. Only meaningful
// on a normalized submission.
func (s MCQSubmission) Terminal() bool {
	return s.Passed || s.AttemptNumber >= MaxMCQAttempts || s.RemainingAttempts == 0
}

type TheoryStatus string

const (
	TheoryPending TheoryStatus = "PENDING"
	TheoryPass    TheoryStatus = "PASS"
	TheoryFail    TheoryStatus = "FAIL"
)

type TheorySubmission struct {
	ID          SubmissionID `json:"id"`
	TaskID      TaskID       `json:"taskId"`
	StudentName string       `json:"studentName,omitempty"`
	FileName    string       `json:"fileName"`
	Status      TheoryStatus `json:"status"`
	Percentage  *float64     `json:"percentage,omitempty"`
	Feedback    string       `json:"teacherFeedback,omitempty"`
	SubmittedAt string       `json:"submittedAt,omitempty"`
	ReviewedAt  string       `json:"reviewedAt,omitempty"`
}

func (s TheorySubmission) Reviewed() bool {
	return s.Status == TheoryPass || s.Status == TheoryFail
}

// TestResult is one test case outcome of a coding run.
type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}
