package journal

import (
	"context"
	"database/sql"
	"time"
)

type Event struct {
	Seq       int64  `json:"seq"`
	Subject   string `json:"subject"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

const (
	EventLessonFailed    = "LessonCompletionFailed"
	EventLessonConfirmed = "LessonCompletionConfirmed"
)

// EventRepo is the append-only audit trail next to the journal table.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (subject, typ, item_key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Subject, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns events after seq in append order, at most limit of them.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, subject, typ, item_key, data, created_at
		 FROM event_log WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Subject, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
