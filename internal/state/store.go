package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ultronlabs/ultron/pkg/models"
)

// Store persists sessions, steps, and created files for the orchestrator
// and the status/cleanup commands.
type Store struct {
	db *DB
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateSession inserts a new session row and returns its ID.
func (s *Store) CreateSession(task string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, task, status, started_at)
		VALUES (?, ?, ?, ?)
	`, id, task, string(models.SessionPlanning), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// UpdateSession writes the current status, project dir, and usage totals.
func (s *Store) UpdateSession(id string, status models.SessionStatus, projectDir string, tokensIn, tokensOut int64, cost float64) error {
	_, err := s.db.Exec(`
		UPDATE sessions
		SET status = ?, project_dir = ?, tokens_in = ?, tokens_out = ?, cost = ?
		WHERE id = ?
	`, string(status), projectDir, tokensIn, tokensOut, cost, id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// FinishSession marks a session terminal with its final status.
func (s *Store) FinishSession(id string, status models.SessionStatus) error {
	_, err := s.db.Exec(`
		UPDATE sessions SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// GetSession loads one session by ID.
func (s *Store) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, task, COALESCE(project_dir, ''), status, tokens_in, tokens_out, cost, started_at, finished_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// ListSessions returns sessions ordered newest first.
func (s *Store) ListSessions(limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, task, COALESCE(project_dir, ''), status, tokens_in, tokens_out, cost, started_at, finished_at
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var status, startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&sess.ID, &sess.Task, &sess.ProjectDir, &status,
		&sess.TokensIn, &sess.TokensOut, &sess.Cost, &startedAt, &finishedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = models.SessionStatus(status)
	if t, err := parseTime(startedAt); err == nil {
		sess.StartedAt = t
	}
	sess.FinishedAt = parseNullableTime(finishedAt)
	return &sess, nil
}

// RecordStep inserts a step row for a session and returns the step ID.
func (s *Store) RecordStep(sessionID string, idx int, task models.Subtask) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO steps (id, session_id, idx, agent, description, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, sessionID, idx, string(task.Agent), task.Description,
		string(models.StepPending), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("record step: %w", err)
	}
	return id, nil
}

// FinishStep records a step's result.
func (s *Store) FinishStep(stepID string, result models.StepResult) error {
	_, err := s.db.Exec(`
		UPDATE steps SET status = ?, output = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(result.Status), result.Output, result.Error, formatTime(time.Now()), stepID)
	if err != nil {
		return fmt.Errorf("finish step: %w", err)
	}
	return nil
}

// CountSteps returns the number of step rows for a session.
func (s *Store) CountSteps(sessionID string) (int, error) {
	var n int
	row := s.db.QueryRow("SELECT COUNT(*) FROM steps WHERE session_id = ?", sessionID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count steps: %w", err)
	}
	return n, nil
}

// RecordFile inserts a created-file row, ignoring duplicates.
func (s *Store) RecordFile(sessionID, path string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO files (session_id, path, created_at) VALUES (?, ?, ?)
	`, sessionID, path, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record file: %w", err)
	}
	return nil
}

// SessionFiles returns the file paths recorded for a session.
func (s *Store) SessionFiles(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT path FROM files WHERE session_id = ? ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// OldSessionDirs returns the distinct project directories of sessions older
// than the given duration. Used by cleanup before purging the rows.
func (s *Store) OldSessionDirs(olderThan time.Duration) ([]string, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	rows, err := s.db.Query(`
		SELECT DISTINCT project_dir FROM sessions
		WHERE started_at < ? AND project_dir IS NOT NULL AND project_dir != ''
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("old session dirs: %w", err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan project dir: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// PurgeOldSessions deletes sessions (and their steps and files, via cascade)
// older than the given duration. Returns the number of sessions deleted.
func (s *Store) PurgeOldSessions(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := s.db.Exec("DELETE FROM sessions WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
