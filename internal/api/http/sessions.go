package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/selection"
	"github.com/mind-engage/mindengage-learn/internal/session"
)

func identity(r *http.Request) session.Identity {
	ctx := r.Context()
	return session.Identity{
		Subject: rbac.SubjectFromContext(ctx),
		Role:    course.ParseRole(rbac.RoleFromContext(ctx)),
		Token:   rbac.TokenFromContext(ctx),
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadID, name, raw)
	}
	return id, nil
}

// sessionOf resolves {sid} for the caller and the token they presented.
func sessionOf(m *session.Manager, r *http.Request) (*session.Session, error) {
	return m.Get(chi.URLParam(r, "sid"), identity(r))
}

type openSessionReq struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}

// POST /sessions
func OpenSessionHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openSessionReq
		if err := decode(r, &req); err != nil {
			writeErr(w, r, log, err)
			return
		}
		s, err := m.Open(r.Context(), identity(r), course.CourseID(req.CourseID))
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.View())
	}
}

// GET /sessions/{sid}
func GetSessionHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionOf(m, r)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// DELETE /sessions/{sid}
func CloseSessionHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Close(chi.URLParam(r, "sid"), identity(r)); err != nil {
			writeErr(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// withSession resolves the session, runs fn and answers with the fresh view.
func withSession(m *session.Manager, log *logger.Logger, fn func(*http.Request, *session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionOf(m, r)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		if err := fn(r, s); err != nil {
			writeErr(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// POST /sessions/{sid}/lessons/{lessonID}/select
func SelectLessonHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		id, err := idParam(r, "lessonID")
		if err != nil {
			return err
		}
		return s.SelectLesson(course.LessonID(id))
	})
}

// POST /sessions/{sid}/tasks/{taskID}/select
func SelectTaskHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		id, err := idParam(r, "taskID")
		if err != nil {
			return err
		}
		return s.SelectTask(r.Context(), course.TaskID(id))
	})
}

type tabReq struct {
	Tab string `json:"tab" validate:"required,oneof=overview tasks"`
}

// PUT /sessions/{sid}/tab
func SetTabHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		var req tabReq
		if err := decode(r, &req); err != nil {
			return err
		}
		return s.SetTab(selection.Tab(req.Tab))
	})
}

// POST /sessions/{sid}/lessons/{lessonID}/complete
func CompleteLessonHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return withSession(m, log, func(r *http.Request, s *session.Session) error {
		id, err := idParam(r, "lessonID")
		if err != nil {
			return err
		}
		return s.CompleteLesson(r.Context(), course.LessonID(id))
	})
}

// DELETE /sessions/{sid}/notifications/{id}
func DismissNotificationHandler(m *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionOf(m, r)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		if !s.DismissNotification(chi.URLParam(r, "id")) {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
