package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is a finished workout as stored in the database.
type Session struct {
	ID        string        `json:"id"`
	Exercise  string        `json:"exercise"`
	Category  string        `json:"category"`
	Target    int           `json:"target"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	Warnings  int           `json:"warnings"`
	Accuracy  int           `json:"accuracy"`
	Calories  int           `json:"calories"`
	Manual    bool          `json:"manual"`
	Completed bool          `json:"completed"`
	// Issues are the distinct form warnings, in the order first seen.
	Issues    []string  `json:"issues"`
	StartedAt time.Time `json:"started_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db, now: time.Now}
}

const sessionColumns = `id, exercise, category, target, count, duration_ms, warnings,
	accuracy, calories, manual, completed, started_ms, created_at`

// Create inserts a session and its feedback in a single transaction.
// An empty ID is filled with a new UUID; a zero StartedAt defaults to now.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = r.now()
	if s.StartedAt.IsZero() {
		s.StartedAt = s.CreatedAt
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Exercise, s.Category, s.Target, s.Count, s.Duration.Milliseconds(), s.Warnings,
		s.Accuracy, s.Calories, s.Manual, s.Completed, s.StartedAt.UnixMilli(), s.CreatedAt,
	)
	if err != nil {
		return err
	}

	if len(s.Issues) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO session_feedback (session_id, position, message) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, msg := range s.Issues {
			if _, err := stmt.Exec(s.ID, i, msg); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves a session and its feedback by ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	issues, err := r.issues(id)
	if err != nil {
		return nil, err
	}
	s.Issues = issues
	return s, nil
}

// List retrieves the most recent sessions, newest first. A limit of zero or
// less returns every session.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_ms DESC, created_at DESC LIMIT ?`,
		limit,
	)
}

// ListBetween retrieves sessions started in [from, to), newest first.
func (r *SessionRepository) ListBetween(from, to time.Time) ([]*Session, error) {
	return r.query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE started_ms >= ? AND started_ms < ?
		 ORDER BY started_ms DESC, created_at DESC`,
		from.UnixMilli(), to.UnixMilli(),
	)
}

// Delete removes a session and its feedback by ID.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *SessionRepository) query(q string, args ...any) ([]*Session, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range sessions {
		if s.Issues, err = r.issues(s.ID); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

func (r *SessionRepository) issues(sessionID string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT message FROM session_feedback WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []string{}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		issues = append(issues, msg)
	}

	return issues, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var durationMs, startedMs int64

	err := row.Scan(
		&s.ID, &s.Exercise, &s.Category, &s.Target, &s.Count, &durationMs, &s.Warnings,
		&s.Accuracy, &s.Calories, &s.Manual, &s.Completed, &startedMs, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Duration = time.Duration(durationMs) * time.Millisecond
	s.StartedAt = time.UnixMilli(startedMs)
	return s, nil
}
