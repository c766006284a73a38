package services

import (
	"context"
	"database/sql"
	"fmt"

	"study-buddy/internal/models"
)

// HistoryService keeps finished study sessions in SQLite.
type HistoryService struct {
	db *sql.DB
}

func NewHistoryService(db *sql.DB) *HistoryService {
	return &HistoryService{db: db}
}

// Record stores a finished session and returns its row id.
func (s *HistoryService) Record(ctx context.Context, session *models.Session) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (job_id, action, input, status, reason, output, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`,
		session.JobID,
		session.Action,
		session.Input,
		session.Status,
		session.Reason,
		session.Output,
		session.StartedAt,
		session.FinishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}
	session.ID = id
	return id, nil
}

// List returns the most recent sessions first.
func (s *HistoryService) List(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, action, input, status, reason, output, started_at, finished_at
		FROM sessions
		ORDER BY finished_at DESC, id DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.JobID,
			&session.Action,
			&session.Input,
			&session.Status,
			&session.Reason,
			&session.Output,
			&session.StartedAt,
			&session.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
