package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-learn/internal/auth/middleware"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/session"
)

type Deps struct {
	Sessions *session.Manager
	Reviews  ReviewBackend
	// Events is the completion audit trail. It is served only when Tokens
	// verifies signatures, since nothing upstream re-checks the caller.
	Events EventSource
	Tokens *auth.TokenParser
	// Auth overrides the bearer middleware built from Tokens.
	Auth        func(http.Handler) http.Handler
	CORSOrigins []string
	// Ready reports whether dependencies such as the journal database are
	// reachable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Timeout time.Duration
	Log     *logger.Logger
}

// NewRouter builds the gateway's HTTP surface.
func NewRouter(d Deps) chi.Router {
	log := logger.OrNop(d.Log)
	if d.Timeout <= 0 {
		d.Timeout = 60 * time.Second
	}
	if d.Auth == nil {
		if d.Tokens == nil {
			d.Tokens = auth.NewTokenParser("")
		}
		known := auth.RequireKnownRole(rbac.Default())
		jwtmw := auth.JWTMiddleware(d.Tokens)
		d.Auth = func(next http.Handler) http.Handler { return jwtmw(known(next)) }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				log.Warn("not ready", "error", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(d.Auth)

		m := d.Sessions
		pr.Route("/sessions", func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermCourseLearn))
			sr.Post("/", OpenSessionHandler(m, log))
			sr.Route("/{sid}", func(s chi.Router) {
				s.Get("/", GetSessionHandler(m, log))
				s.Delete("/", CloseSessionHandler(m, log))
				s.Put("/tab", SetTabHandler(m, log))
				s.Post("/lessons/{lessonID}/select", SelectLessonHandler(m, log))
				s.Post("/tasks/{taskID}/select", SelectTaskHandler(m, log))
				s.With(rbac.Require(rbac.PermLessonComplete)).
					Post("/lessons/{lessonID}/complete", CompleteLessonHandler(m, log))
				s.Delete("/notifications/{id}", DismissNotificationHandler(m, log))

				s.Route("/coding", func(c chi.Router) {
					c.Use(rbac.Require(rbac.PermCodingRun))
					c.Put("/language", SetLanguageHandler(m, log))
					c.Put("/code", SetCodeHandler(m, log))
					c.Post("/run", RunCodeHandler(m, log))
					c.With(rbac.Require(rbac.PermLessonComplete)).
						Post("/complete", CompleteCodingHandler(m, log))
				})
				s.Route("/mcq", func(q chi.Router) {
					q.Use(rbac.Require(rbac.PermMCQSubmit))
					q.Put("/answers/{questionID}", AnswerHandler(m, log))
					q.Post("/submit", SubmitMCQHandler(m, log))
					q.Post("/retry", RetryMCQHandler(m, log))
				})
				s.Route("/theory", func(t chi.Router) {
					t.Use(rbac.Require(rbac.PermTheorySubmit))
					t.Post("/submit", SubmitTheoryHandler(m, log))
					t.Get("/download", DownloadTheoryHandler(m, log))
				})
			})
		})

		pr.Route("/review", func(rr chi.Router) {
			rr.With(rbac.RequireAny(rbac.PermTheoryReview, rbac.PermSubmissionsRead)).
				Get("/tasks/{taskID}/submissions", ListTheorySubmissionsHandler(d.Reviews, log))
			rr.With(rbac.Require(rbac.PermTheoryReview)).
				Put("/submissions/{submissionID}", ReviewTheoryHandler(d.Reviews, log))
		})

		if d.Events != nil && d.Tokens != nil && d.Tokens.Verifying() {
			pr.With(rbac.Require(rbac.PermJournalRead)).
				Get("/admin/journal/events", JournalEventsHandler(d.Events, log))
		}
	})
	return r
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
