package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/submission"
)

// ReviewBackend binds the backend's review endpoints to a reviewer token.
type ReviewBackend func(token string) submission.ReviewAPI

func reviewerFor(rb ReviewBackend, r *http.Request, log *logger.Logger) *submission.Reviewer {
	return submission.NewReviewer(rb(rbac.TokenFromContext(r.Context())), log)
}

// GET /review/tasks/{taskID}/submissions
func ListTheorySubmissionsHandler(rb ReviewBackend, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "taskID")
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		subs, err := reviewerFor(rb, r, log).List(r.Context(), course.TaskID(id))
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

type reviewReq struct {
	Percentage *float64 `json:"percentage" validate:"required,gte=0,lte=100"`
	Feedback   string   `json:"feedback" validate:"max=10000"`
}

// PUT /review/submissions/{submissionID}
func ReviewTheoryHandler(rb ReviewBackend, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "submissionID")
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		var req reviewReq
		if err := decode(r, &req); err != nil {
			writeErr(w, r, log, err)
			return
		}
		rv, err := reviewerFor(rb, r, log).Review(r.Context(), course.SubmissionID(id), *req.Percentage, req.Feedback)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		log.Info("theory submission reviewed", "submission_id", id, "reviewer", rbac.SubjectFromContext(r.Context()), "status", rv.Status)
		writeJSON(w, http.StatusOK, rv)
	}
}
