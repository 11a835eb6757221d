package course

import (
	"encoding/json"
	"fmt"
	"strings"
)

type TaskKind string

const (
	KindCoding TaskKind = "CODING"
	KindMCQ    TaskKind = "MCQ"
	KindTheory TaskKind = "THEORY"
)

// TaskPayload is the closed set of task variants. Switch on the concrete
// type; the unexported method keeps other packages from adding variants.
type TaskPayload interface {
	Kind() TaskKind
	isTaskPayload()
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

type Coding struct {
	StarterCode string
	TestCases   []TestCase
}

type Question struct {
	ID      QuestionID `json:"id"`
	Text    string     `json:"question"`
	OptionA string     `json:"optionA"`
	OptionB string     `json:"optionB"`
	OptionC string     `json:"optionC"`
	OptionD string     `json:"optionD"`
}

type MCQ struct {
	Questions []Question
}

type Theory struct{}

func (Coding) Kind() TaskKind { return KindCoding }
func (MCQ) Kind() TaskKind    { return KindMCQ }
func (Theory) Kind() TaskKind { return KindTheory }

func (Coding) isTaskPayload() {}
func (MCQ) isTaskPayload()    {}
func (Theory) isTaskPayload() {}

type Task struct {
	ID          TaskID
	Title       string
	Description string
	DayNumber   int
	Completed   bool
	CreatedAt   string
	Payload     TaskPayload
}

func (t Task) Day() int { return normalizeDay(t.DayNumber) }

func (t Task) Kind() TaskKind {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Kind()
}

type taskWire struct {
	ID           TaskID     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DayNumber    int        `json:"dayNumber,omitempty"`
	Completed    bool       `json:"completed"`
	CreatedAt    string     `json:"createdAt,omitempty"`
	TaskType     string     `json:"taskType"`
	StarterCode  string     `json:"starterCode,omitempty"`
	TestCases    []TestCase `json:"testCases,omitempty"`
	MCQQuestions []Question `json:"mcqQuestions,omitempty"`
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		DayNumber:   w.DayNumber,
		Completed:   w.Completed,
		CreatedAt:   w.CreatedAt,
	}
	switch TaskKind(strings.ToUpper(w.TaskType)) {
	case KindCoding, "":
		// tasks created before task types existed are coding tasks
		t.Payload = Coding{StarterCode: w.StarterCode, TestCases: w.TestCases}
	case KindMCQ:
		t.Payload = MCQ{Questions: w.MCQQuestions}
	case KindTheory:
		t.Payload = Theory{}
	default:
		return fmt.Errorf("course: task %d has unknown type %q", w.ID, w.TaskType)
	}
	return nil
}

func (t Task) MarshalJSON() ([]byte, error) {
	w := taskWire{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DayNumber:   t.DayNumber,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
	}
	switch p := t.Payload.(type) {
	case Coding:
		w.TaskType = string(KindCoding)
		w.StarterCode = p.StarterCode
		w.TestCases = p.TestCases
	case MCQ:
		w.TaskType = string(KindMCQ)
		w.MCQQuestions = p.Questions
	case Theory:
		w.TaskType = string(KindTheory)
	case nil:
		return nil, fmt.Errorf("course: task %d has no payload", t.ID)
	}
	return json.Marshal(w)
}
