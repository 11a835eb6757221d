package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-learn/internal/grading"
	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
	"github.com/mind-engage/mindengage-learn/internal/selection"
	"github.com/mind-engage/mindengage-learn/internal/session"
	"github.com/mind-engage/mindengage-learn/internal/submission"
)

var (
	errBadJSON = errors.New("bad json")
	errBadID   = errors.New("bad id")
)

var validate = validator.New()

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain and upstream errors to a response status.
func statusOf(err error) int {
	var (
		verrs  validator.ValidationErrors
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, selection.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, selection.ErrLocked),
		errors.Is(err, submission.ErrStale),
		errors.Is(err, submission.ErrBusy),
		errors.Is(err, submission.ErrAlreadySubmitted),
		errors.Is(err, submission.ErrNoActiveTask):
		return http.StatusConflict
	case errors.Is(err, submission.ErrFileTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadJSON), errors.Is(err, errBadID), errors.As(err, &verrs),
		errors.Is(err, selection.ErrUnknownTab),
		errors.Is(err, submission.ErrTestsNotPassing),
		errors.Is(err, submission.ErrUnknownLanguage),
		errors.Is(err, submission.ErrIncomplete),
		errors.Is(err, submission.ErrInvalidOption),
		errors.Is(err, submission.ErrUnknownQuestion),
		errors.Is(err, submission.ErrRetryUnavailable),
		errors.Is(err, submission.ErrNoFile),
		errors.Is(err, submission.ErrNotSubmitted),
		errors.Is(err, grading.ErrPercentageRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		switch {
		case apierr.IsForbidden(err):
			return http.StatusForbidden
		case apierr.IsNotFound(err):
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := statusOf(err)
	if code >= 500 {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	http.Error(w, err.Error(), code)
}
