package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/naduri/naduri-backend/internal/database"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/repository"
)

type turnRow struct {
	ID        int64          `db:"id"`
	SessionID string         `db:"session_id"`
	TurnIndex int            `db:"turn_index"`
	Speaker   string         `db:"speaker"`
	StartMs   int64          `db:"start_ms"`
	EndMs     int64          `db:"end_ms"`
	Text      sql.NullString `db:"text"`
	AudioPath sql.NullString `db:"audio_path"`
	Meta      sql.NullString `db:"meta"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r turnRow) toModel() models.Turn {
	return models.Turn{
		SessionID: r.SessionID,
		TurnIndex: r.TurnIndex,
		Speaker:   models.Speaker(r.Speaker),
		StartMs:   r.StartMs,
		EndMs:     r.EndMs,
		Text:      r.Text.String,
		AudioPath: r.AudioPath.String,
		Meta:      decodeMeta(r.Meta),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// TurnRepository implements repository.TurnRepository over sqlx
type TurnRepository struct {
	db *sqlx.DB
}

// NewTurnRepository creates a new SQL turn repository
func NewTurnRepository(db *sqlx.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

var _ repository.TurnRepository = (*TurnRepository)(nil)

// Append computes max(turn_index)+1 and inserts the turn in one transaction.
// A concurrent writer that took the same index surfaces as repository.ErrConflict.
func (r *TurnRepository) Append(ctx context.Context, turn *models.Turn) error {
	meta, err := encodeMeta(turn.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode turn meta: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var found int
	err = tx.GetContext(ctx, &found, tx.Rebind(`SELECT 1 FROM sessions WHERE id = ?`), turn.SessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	var next int
	query := tx.Rebind(`SELECT COALESCE(MAX(turn_index), 0) + 1 FROM turns WHERE session_id = ?`)
	if err := tx.GetContext(ctx, &next, query, turn.SessionID); err != nil {
		return fmt.Errorf("failed to compute turn index: %w", err)
	}

	row := turnRow{
		SessionID: turn.SessionID,
		TurnIndex: next,
		Speaker:   string(turn.Speaker),
		StartMs:   turn.StartMs,
		EndMs:     turn.EndMs,
		Text:      sql.NullString{String: turn.Text, Valid: true},
		AudioPath: sql.NullString{String: turn.AudioPath, Valid: turn.AudioPath != ""},
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}

	insert := `
		INSERT INTO turns (session_id, turn_index, speaker, start_ms, end_ms, text, audio_path, meta, created_at)
		VALUES (:session_id, :turn_index, :speaker, :start_ms, :end_ms, :text, :audio_path, :meta, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
		if database.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	turn.TurnIndex = row.TurnIndex
	turn.CreatedAt = row.CreatedAt
	return nil
}

// ListBySession returns the ledger ordered by turn_index
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Turn, error) {
	var rows []turnRow
	query := r.db.Rebind(`
		SELECT id, session_id, turn_index, speaker, start_ms, end_ms, text, audio_path, meta, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY turn_index ASC
	`)

	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	turns := make([]models.Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, row.toModel())
	}
	return turns, nil
}
