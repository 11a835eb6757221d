package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/mindengage-learn/internal/apiclient"
	auth "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/journal"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/selection"
	"github.com/mind-engage/mindengage-learn/internal/session"
	"github.com/mind-engage/mindengage-learn/internal/submission"
)

type fakeBackend struct {
	mu         sync.Mutex
	lessonsErr error
	uploaded   []byte
	uploadName string
	reviews    map[course.SubmissionID]apiclient.Review
}

func (b *fakeBackend) Lessons(context.Context, course.CourseID) ([]course.Lesson, error) {
	return []course.Lesson{
		{ID: 1, DayNumber: 1, Order: 1, VideoURL: "https://youtu.be/dQw4w9WgXcQ"},
		{ID: 2, DayNumber: 2, Order: 1, VideoURL: "https://youtu.be/dQw4w9WgXcQ"},
	}, b.lessonsErr
}

func (b *fakeBackend) Tasks(context.Context, course.CourseID) ([]course.Task, error) {
	return []course.Task{
		{ID: 20, DayNumber: 1, Title: "Essay", Payload: course.Theory{}},
	}, nil
}

func (b *fakeBackend) Progress(_ context.Context, id course.CourseID) (course.Progress, error) {
	one := 1
	return course.Progress{CourseID: id, TotalLessons: 2, CurrentDay: &one, DaysElapsed: &one}, nil
}

func (b *fakeBackend) CompleteLesson(context.Context, course.CourseID, course.LessonID) error {
	return nil
}

func (b *fakeBackend) CompleteTask(context.Context, course.TaskID) error { return nil }

func (b *fakeBackend) MCQSubmission(context.Context, course.TaskID) (course.MCQSubmission, error) {
	return course.MCQSubmission{}, apierr.New(http.StatusNotFound, "http_404", errors.New("none"))
}

func (b *fakeBackend) SubmitMCQ(context.Context, course.TaskID, map[course.QuestionID]string) (course.MCQSubmission, error) {
	return course.MCQSubmission{}, errors.New("not used")
}

func (b *fakeBackend) TheorySubmission(context.Context, course.TaskID) (course.TheorySubmission, error) {
	return course.TheorySubmission{}, apierr.New(http.StatusNotFound, "http_404", errors.New("none"))
}

func (b *fakeBackend) SubmitTheory(_ context.Context, taskID course.TaskID, name string, r io.Reader) (course.TheorySubmission, error) {
	data, _ := io.ReadAll(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploaded, b.uploadName = data, name
	return course.TheorySubmission{ID: 7, TaskID: taskID, FileName: name}, nil
}

func (b *fakeBackend) DownloadTheory(context.Context, course.SubmissionID) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return io.NopCloser(bytes.NewReader(b.uploaded)), nil
}

func (b *fakeBackend) TheorySubmissions(context.Context, course.TaskID) ([]course.TheorySubmission, error) {
	return nil, nil
}

func (b *fakeBackend) ReviewTheory(_ context.Context, id course.SubmissionID, rv apiclient.Review) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reviews == nil {
		b.reviews = map[course.SubmissionID]apiclient.Review{}
	}
	b.reviews[id] = rv
	return nil
}

// headerAuth stands in for the JWT middleware.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := r.Header.Get("X-Test-Subject")
		if sub == "" {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		ctx := rbac.WithSubject(r.Context(), sub)
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Test-Role"))
		ctx = rbac.WithToken(ctx, "tok-"+sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(t *testing.T, b *fakeBackend) *httptest.Server {
	t.Helper()
	m := session.NewManager(session.Deps{
		Backend: func(string) session.Backend { return b },
		Dwell:   time.Hour,
	}, time.Hour)
	t.Cleanup(m.Stop)
	srv := httptest.NewServer(NewRouter(Deps{
		Sessions: m,
		Reviews:  func(string) submission.ReviewAPI { return b },
		Auth:     headerAuth,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, subject, role, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "" {
		req.Header.Set("X-Test-Subject", subject)
		req.Header.Set("X-Test-Role", role)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func openSession(t *testing.T, srv *httptest.Server) session.View {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/sessions", "alice@example.com", "STUDENT", `{"courseId":5}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	var v session.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})
	v := openSession(t, srv)
	if v.SessionID == "" || len(v.Days) != 2 || !v.Days[1].Locked {
		t.Fatalf("view = %+v", v)
	}
	base := "/sessions/" + v.SessionID

	if resp := do(t, srv, http.MethodGet, base, "mallory@example.com", "STUDENT", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign subject status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/lessons/2/select", "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("locked select status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/lessons/99/select", "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown lesson status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/lessons/1/complete", "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, base+"/tab", "alice@example.com", "STUDENT", `{"tab":"sideways"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad tab status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, base+"/coding/run", "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("run without coding task status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodDelete, base, "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, base, "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("closed session status = %d", resp.StatusCode)
	}
}

func TestOpenSessionValidation(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})
	for body, want := range map[string]int{
		`{`:              http.StatusBadRequest,
		`{"courseId":0}`: http.StatusBadRequest,
	} {
		if resp := do(t, srv, http.MethodPost, "/sessions", "alice@example.com", "STUDENT", body); resp.StatusCode != want {
			t.Errorf("body %s: status = %d, want %d", body, resp.StatusCode, want)
		}
	}
	if resp := do(t, srv, http.MethodPost, "/sessions", "", "", `{"courseId":5}`); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", resp.StatusCode)
	}
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{lessonsErr: apierr.New(0, "transport", errors.New("offline"))})
	if resp := do(t, srv, http.MethodPost, "/sessions", "alice@example.com", "STUDENT", `{"courseId":5}`); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestTheoryUploadAndDownload(t *testing.T) {
	b := &fakeBackend{}
	srv := newTestServer(t, b)
	v := openSession(t, srv)
	base := "/sessions/" + v.SessionID
	if resp := do(t, srv, http.MethodPost, base+"/tasks/20/select", "alice@example.com", "STUDENT", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("select status = %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "essay.pdf")
	_, _ = part.Write([]byte("%PDF-1.4 essay"))
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+base+"/theory/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-Subject", "alice@example.com")
	req.Header.Set("X-Test-Role", "STUDENT")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if b.uploadName != "essay.pdf" || string(b.uploaded) != "%PDF-1.4 essay" {
		t.Fatalf("backend got %q %q", b.uploadName, b.uploaded)
	}

	dl := do(t, srv, http.MethodGet, base+"/theory/download", "alice@example.com", "STUDENT", "")
	body, _ := io.ReadAll(dl.Body)
	if dl.StatusCode != http.StatusOK || string(body) != "%PDF-1.4 essay" {
		t.Fatalf("download = %d %q", dl.StatusCode, body)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "essay.pdf") {
		t.Fatalf("content-disposition = %q", cd)
	}
}

func TestReviewRoutes(t *testing.T) {
	b := &fakeBackend{}
	srv := newTestServer(t, b)
	if resp := do(t, srv, http.MethodPut, "/review/submissions/7", "alice@example.com", "STUDENT", `{"percentage":90}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student review status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, "/review/submissions/7", "t@example.com", "TEACHER", `{"percentage":150}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range status = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, "/review/submissions/7", "t@example.com", "TEACHER", `{"feedback":"x"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing percentage status = %d", resp.StatusCode)
	}
	resp := do(t, srv, http.MethodPut, "/review/submissions/7", "t@example.com", "TEACHER", `{"percentage":60,"feedback":"ok"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("review status = %d", resp.StatusCode)
	}
	if got := b.reviews[7]; got.Status != course.TheoryPass || got.Feedback != "ok" {
		t.Fatalf("review sent = %+v", got)
	}

	list := do(t, srv, http.MethodGet, "/review/tasks/20/submissions", "t@example.com", "TEACHER", "")
	body, _ := io.ReadAll(list.Body)
	if list.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("list = %d %s", list.StatusCode, body)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{session.ErrNotFound, http.StatusNotFound},
		{selection.ErrLocked, http.StatusConflict},
		{fmt.Errorf("wrap: %w", submission.ErrStale), http.StatusConflict},
		{submission.ErrIncomplete, http.StatusBadRequest},
		{submission.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{apierr.New(http.StatusForbidden, "http_403", errors.New("no")), http.StatusForbidden},
		{apierr.New(http.StatusInternalServerError, "http_500", errors.New("boom")), http.StatusBadGateway},
		{apierr.New(0, "transport", errors.New("offline")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusOf(c.err); got != c.want {
			t.Errorf("statusOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("db down")
	srv := httptest.NewServer(NewRouter(Deps{
		Sessions: session.NewManager(session.Deps{}, time.Hour),
		Auth:     headerAuth,
		Ready:    func(context.Context) error { return ready },
	}))
	defer srv.Close()
	if resp := do(t, srv, http.MethodGet, "/healthz", "", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/readyz", "", "", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", resp.StatusCode)
	}
}

type fakeEvents struct{ since int64 }

func (f *fakeEvents) Since(_ context.Context, seq int64, _ int) ([]journal.Event, error) {
	f.since = seq
	return []journal.Event{{Seq: seq + 1, Type: journal.EventLessonFailed, Key: "5/2"}}, nil
}

// bearer issues a request carrying a real Authorization header.
func bearer(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// signWith mints an HS256 token under an arbitrary key.
func signWith(t *testing.T, key, sub, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestJournalEventsAdminOnly(t *testing.T) {
	ev := &fakeEvents{}
	tokens := auth.NewTokenParser("s3cret")
	srv := httptest.NewServer(NewRouter(Deps{
		Sessions: session.NewManager(session.Deps{}, time.Hour),
		Events:   ev,
		Tokens:   tokens,
	}))
	defer srv.Close()
	teacher, _ := tokens.Issue("t@example.com", "teacher", time.Hour)
	admin, _ := tokens.Issue("root@example.com", "admin", time.Hour)

	if resp := bearer(t, srv, http.MethodGet, "/admin/journal/events", teacher, ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("teacher status = %d", resp.StatusCode)
	}
	if resp := bearer(t, srv, http.MethodGet, "/admin/journal/events", signWith(t, "other", "root@example.com", "admin"), ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign signature status = %d", resp.StatusCode)
	}
	if resp := bearer(t, srv, http.MethodGet, "/admin/journal/events?limit=0", admin, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode)
	}
	resp := bearer(t, srv, http.MethodGet, "/admin/journal/events?since=41", admin, "")
	var events []journal.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || ev.since != 41 || len(events) != 1 || events[0].Seq != 42 {
		t.Fatalf("events = %d %+v", resp.StatusCode, events)
	}
}

func TestUnverifiedTokensReachOnlyOwnState(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewManager(session.Deps{
		Backend: func(string) session.Backend { return b },
		Dwell:   time.Hour,
	}, time.Hour)
	t.Cleanup(m.Stop)
	srv := httptest.NewServer(NewRouter(Deps{
		Sessions: m,
		Reviews:  func(string) submission.ReviewAPI { return b },
		Events:   &fakeEvents{},
		Tokens:   auth.NewTokenParser(""),
	}))
	defer srv.Close()

	// without a secret the journal is not served at all
	forgedAdmin := signWith(t, "anything", "attacker@example.com", "admin")
	if resp := bearer(t, srv, http.MethodGet, "/admin/journal/events", forgedAdmin, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("journal status = %d", resp.StatusCode)
	}

	alice := signWith(t, "backend-key", "alice@example.com", "student")
	resp := bearer(t, srv, http.MethodPost, "/sessions", alice, `{"courseId":5}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	var v session.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}

	// same subject, different token: the session stays hidden
	forged := signWith(t, "anything", "alice@example.com", "student")
	if resp := bearer(t, srv, http.MethodGet, "/sessions/"+v.SessionID, forged, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("forged token status = %d", resp.StatusCode)
	}
	if resp := bearer(t, srv, http.MethodDelete, "/sessions/"+v.SessionID, forged, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("forged close status = %d", resp.StatusCode)
	}
	if resp := bearer(t, srv, http.MethodGet, "/sessions/"+v.SessionID, alice, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("owner status = %d", resp.StatusCode)
	}
}
