// Package apiclient talks to the e-learning REST backend on behalf of one
// learner. Every call forwards the learner's bearer token.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is safe for concurrent use. Use WithToken to bind a learner.
type Client struct {
	http  *resty.Client
	log   *logger.Logger
	token string
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: r, log: logger.OrNop(log)}
}

// WithToken returns a client that authenticates as the token's subject.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) req(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	return r
}

// do runs the request and maps transport failures and non-2xx replies to
// *apierr.Error.
func (c *Client) do(r *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := r.Execute(method, path)
	if err != nil {
		c.log.Warn("backend call failed", "method", method, "path", path, "error", err)
		return nil, apierr.New(0, "transport", fmt.Errorf("%s %s: %w", method, path, err))
	}
	if resp.IsError() {
		c.log.Debug("backend error reply", "method", method, "path", path, "status", resp.StatusCode())
		return resp, apierr.New(resp.StatusCode(), "http_"+strconv.Itoa(resp.StatusCode()),
			fmt.Errorf("%s %s: %s", method, path, resp.Status()))
	}
	return resp, nil
}

func (c *Client) Lessons(ctx context.Context, courseID course.CourseID) ([]course.Lesson, error) {
	var out []course.Lesson
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/courses/%d/lessons", courseID))
	return out, err
}

func (c *Client) Tasks(ctx context.Context, courseID course.CourseID) ([]course.Task, error) {
	var out []course.Task
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/courses/%d/tasks", courseID))
	return out, err
}

func (c *Client) Progress(ctx context.Context, courseID course.CourseID) (course.Progress, error) {
	var out course.Progress
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/progress/courses/%d", courseID))
	return out, err
}

func (c *Client) CompleteLesson(ctx context.Context, courseID course.CourseID, lessonID course.LessonID) error {
	_, err := c.do(c.req(ctx), http.MethodPost, fmt.Sprintf("/progress/courses/%d/lessons/%d/complete", courseID, lessonID))
	return err
}

func (c *Client) CompleteTask(ctx context.Context, taskID course.TaskID) error {
	_, err := c.do(c.req(ctx), http.MethodPost, fmt.Sprintf("/tasks/%d/complete", taskID))
	return err
}

func (c *Client) MCQSubmission(ctx context.Context, taskID course.TaskID) (course.MCQSubmission, error) {
	var out course.MCQSubmission
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/mcq/%d/submission", taskID))
	return out, err
}

// SubmitMCQ posts the answers. The backend expects them as a JSON string
// holding a flat questionId → option object.
func (c *Client) SubmitMCQ(ctx context.Context, taskID course.TaskID, answers map[course.QuestionID]string) (course.MCQSubmission, error) {
	flat := make(map[string]string, len(answers))
	for q, opt := range answers {
		flat[strconv.FormatInt(int64(q), 10)] = opt
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return course.MCQSubmission{}, err
	}
	body := map[string]any{"taskId": taskID, "answers": string(encoded)}
	var out course.MCQSubmission
	_, err = c.do(c.req(ctx).SetBody(body).SetResult(&out), http.MethodPost, "/mcq/submit")
	return out, err
}

func (c *Client) TheorySubmission(ctx context.Context, taskID course.TaskID) (course.TheorySubmission, error) {
	var out course.TheorySubmission
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/theory/%d/submission", taskID))
	return out, err
}

func (c *Client) SubmitTheory(ctx context.Context, taskID course.TaskID, fileName string, r io.Reader) (course.TheorySubmission, error) {
	var out course.TheorySubmission
	_, err := c.do(c.req(ctx).SetFileReader("file", fileName, r).SetResult(&out),
		http.MethodPost, fmt.Sprintf("/theory/%d/submit", taskID))
	return out, err
}

func (c *Client) TheorySubmissions(ctx context.Context, taskID course.TaskID) ([]course.TheorySubmission, error) {
	var out []course.TheorySubmission
	_, err := c.do(c.req(ctx).SetResult(&out), http.MethodGet, fmt.Sprintf("/theory/task/%d/submissions", taskID))
	return out, err
}

type Review struct {
	Percentage float64             `json:"percentage"`
	Feedback   string              `json:"feedback"`
	Status     course.TheoryStatus `json:"status"`
}

// ReviewTheory writes a reviewer's grade. The feedback goes out under both
// "feedback" and "teacherFeedback"; the backend binds the latter.
func (c *Client) ReviewTheory(ctx context.Context, id course.SubmissionID, rv Review) error {
	body := map[string]any{
		"percentage":      rv.Percentage,
		"feedback":        rv.Feedback,
		"teacherFeedback": rv.Feedback,
		"status":          rv.Status,
	}
	_, err := c.do(c.req(ctx).SetBody(body), http.MethodPut, fmt.Sprintf("/theory/submission/%d/review", id))
	return err
}

// DownloadTheory streams the stored file of a theory submission. The caller
// closes the reader.
func (c *Client) DownloadTheory(ctx context.Context, id course.SubmissionID) (io.ReadCloser, error) {
	resp, err := c.do(c.req(ctx).SetDoNotParseResponse(true), http.MethodGet, fmt.Sprintf("/theory/submission/%d/download", id))
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, err
	}
	return resp.RawBody(), nil
}
