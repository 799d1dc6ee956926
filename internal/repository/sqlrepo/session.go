package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/repository"
)

type sessionRow struct {
	ID          string         `db:"id"`
	StartedAt   time.Time      `db:"started_at"`
	EndedAt     sql.NullTime   `db:"ended_at"`
	DeviceInfo  sql.NullString `db:"device_info"`
	FinalReport sql.NullString `db:"final_report"`
}

func (r sessionRow) toModel() *models.Session {
	s := &models.Session{
		ID:          r.ID,
		StartedAt:   r.StartedAt.UTC(),
		FinalReport: decodeReport(r.FinalReport),
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time.UTC()
		s.EndedAt = &t
	}
	if r.DeviceInfo.Valid {
		info := r.DeviceInfo.String
		s.DeviceInfo = &info
	}
	return s
}

// SessionRepository implements repository.SessionRepository over sqlx
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SQL session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	row := sessionRow{
		ID:        session.ID,
		StartedAt: session.StartedAt,
	}
	if session.DeviceInfo != nil {
		row.DeviceInfo = sql.NullString{String: *session.DeviceInfo, Valid: true}
	}

	query := `
		INSERT INTO sessions (id, started_at, ended_at, device_info, final_report)
		VALUES (:id, :started_at, :ended_at, :device_info, :final_report)
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	return r.get(ctx, r.db, id)
}

func (r *SessionRepository) get(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Session, error) {
	var row sessionRow
	query := r.db.Rebind(`
		SELECT id, started_at, ended_at, device_info, final_report
		FROM sessions
		WHERE id = ?
	`)

	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return row.toModel(), nil
}

// MarkEnded sets ended_at once; later calls leave the first timestamp in place
func (r *SessionRepository) MarkEnded(ctx context.Context, id string, at time.Time) (*models.Session, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`)
	if _, err := tx.ExecContext(ctx, query, at, id); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	session, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session end: %w", err)
	}
	return session, nil
}

// SetFinalReport overwrites the stored report
func (r *SessionRepository) SetFinalReport(ctx context.Context, id string, report *models.Report) error {
	payload, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := r.db.Rebind(`UPDATE sessions SET final_report = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, payload, id)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
