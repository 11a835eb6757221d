// Package journal persists lesson completions the backend has not yet
// acknowledged, so a restarted gateway can replay them.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-learn/internal/course"
	"github.com/mind-engage/mindengage-learn/internal/progress"
)

type Store struct {
	db     *sql.DB
	events *EventRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, events: NewEventRepo(db)}
}

func (s *Store) Events() *EventRepo { return s.events }

type failurePayload struct {
	CourseID course.CourseID `json:"courseId"`
	LessonID course.LessonID `json:"lessonId"`
	Error    string          `json:"error,omitempty"`
}

func itemKey(k progress.Key, lessonID course.LessonID) string {
	return fmt.Sprintf("course/%d/lesson/%d", k.CourseID, lessonID)
}

// LessonFailed records or bumps an unacknowledged completion.
func (s *Store) LessonFailed(ctx context.Context, k progress.Key, lessonID course.LessonID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completion_journal (subject, course_id, lesson_id, attempts, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,1,$4,$5,$5)
		 ON CONFLICT (subject, course_id, lesson_id) DO UPDATE
		 SET attempts = completion_journal.attempts + 1,
		     last_error = excluded.last_error,
		     updated_at = excluded.updated_at`,
		k.Subject, int64(k.CourseID), int64(lessonID), msg, now)
	if err != nil {
		return fmt.Errorf("journal failure: %w", err)
	}
	return s.appendEvent(ctx, k, EventLessonFailed, lessonID, msg)
}

// LessonConfirmed clears the entry once the backend has the completion.
func (s *Store) LessonConfirmed(ctx context.Context, k progress.Key, lessonID course.LessonID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM completion_journal WHERE subject = $1 AND course_id = $2 AND lesson_id = $3`,
		k.Subject, int64(k.CourseID), int64(lessonID))
	if err != nil {
		return fmt.Errorf("journal confirm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // first-try success, nothing was journaled
	}
	return s.appendEvent(ctx, k, EventLessonConfirmed, lessonID, "")
}

func (s *Store) Unconfirmed(ctx context.Context, k progress.Key) ([]course.LessonID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id FROM completion_journal
		 WHERE subject = $1 AND course_id = $2 ORDER BY lesson_id`,
		k.Subject, int64(k.CourseID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []course.LessonID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, course.LessonID(id))
	}
	return out, rows.Err()
}

// Entry is one unacknowledged completion, for operators.
type Entry struct {
	Subject   string          `json:"subject"`
	CourseID  course.CourseID `json:"courseId"`
	LessonID  course.LessonID `json:"lessonId"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError"`
	UpdatedAt int64           `json:"updatedAt"`
}

func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, course_id, lesson_id, attempts, last_error, updated_at
		 FROM completion_journal ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var cid, lid int64
		if err := rows.Scan(&e.Subject, &cid, &lid, &e.Attempts, &e.LastError, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.CourseID, e.LessonID = course.CourseID(cid), course.LessonID(lid)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) appendEvent(ctx context.Context, k progress.Key, typ string, lessonID course.LessonID, msg string) error {
	data, err := json.Marshal(failurePayload{CourseID: k.CourseID, LessonID: lessonID, Error: msg})
	if err != nil {
		return err
	}
	return s.events.Append(ctx, Event{Subject: k.Subject, Type: typ, Key: itemKey(k, lessonID), DataJSON: string(data)})
}

var _ progress.Journal = (*Store)(nil)
