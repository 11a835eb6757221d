package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-learn/internal/journal"
	"github.com/mind-engage/mindengage-learn/internal/platform/logger"
)

type EventSource interface {
	Since(ctx context.Context, seq int64, limit int) ([]journal.Event, error)
}

// GET /admin/journal/events?since=0&limit=100
func JournalEventsHandler(src EventSource, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			since int64
			limit int
			err   error
		)
		if v := q.Get("since"); v != "" {
			if since, err = strconv.ParseInt(v, 10, 64); err != nil || since < 0 {
				writeErr(w, r, log, fmt.Errorf("%w: since=%q", errBadID, v))
				return
			}
		}
		if v := q.Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > 1000 {
				writeErr(w, r, log, fmt.Errorf("%w: limit=%q", errBadID, v))
				return
			}
		}
		events, err := src.Since(r.Context(), since, limit)
		if err != nil {
			writeErr(w, r, log, err)
			return
		}
		if events == nil {
			events = []journal.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
