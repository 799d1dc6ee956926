package repository

import (
	"context"
	"errors"
	"time"

	"github.com/naduri/naduri-backend/internal/models"
)

var (
	// ErrNotFound is returned when a session does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a turn index was taken by a concurrent writer
	ErrConflict = errors.New("turn index conflict")
)

// SessionRepository defines session storage operations
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// MarkEnded sets ended_at unless it is already set and returns the stored session
	MarkEnded(ctx context.Context, id string, at time.Time) (*models.Session, error)
	SetFinalReport(ctx context.Context, id string, report *models.Report) error
}

// TurnRepository defines turn ledger storage operations.
// Turns are append-only: there is no update or delete.
type TurnRepository interface {
	// Append assigns the next turn index for the session and inserts the turn
	// in a single transaction. The assigned index is written back to turn.
	Append(ctx context.Context, turn *models.Turn) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Turn, error)
}
