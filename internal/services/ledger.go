package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/repository"
)

// maxAppendAttempts bounds retries after a turn index conflict
const maxAppendAttempts = 5

// TurnInput is everything needed to append a turn; the index is assigned by the ledger
type TurnInput struct {
	SessionID string
	Speaker   string
	StartMs   int64
	EndMs     int64
	Text      string
	AudioPath string
	Meta      *models.TurnMeta
}

// ValidateRange checks a turn's time offsets
func ValidateRange(startMs, endMs int64) error {
	if startMs < 0 || endMs < 0 {
		return fmt.Errorf("%w: start_ms and end_ms must not be negative", ErrInvalidParameter)
	}
	if endMs < startMs {
		return ErrInvalidRange
	}
	return nil
}

// Ledger is the single mutation point for turns
type Ledger struct {
	repo    repository.TurnRepository
	locker  lock.Locker
	metrics *llm.MetricsCollector
	logger  *logrus.Logger
}

// NewLedger creates a new turn ledger
func NewLedger(repo repository.TurnRepository, locker lock.Locker, metrics *llm.MetricsCollector, logger *logrus.Logger) *Ledger {
	if metrics == nil {
		metrics = llm.NewNoopMetricsCollector()
	}
	return &Ledger{
		repo:    repo,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
	}
}

// Append validates the input and stores it under the next turn index
func (l *Ledger) Append(ctx context.Context, in TurnInput) (*models.Turn, error) {
	speaker, err := models.ParseSpeaker(in.Speaker)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if err := ValidateRange(in.StartMs, in.EndMs); err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, "turns:"+in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	turn := &models.Turn{
		SessionID: in.SessionID,
		Speaker:   speaker,
		StartMs:   in.StartMs,
		EndMs:     in.EndMs,
		Text:      in.Text,
		AudioPath: in.AudioPath,
		Meta:      in.Meta,
	}

	for attempt := 1; ; attempt++ {
		err = l.repo.Append(ctx, turn)
		if !errors.Is(err, repository.ErrConflict) || attempt == maxAppendAttempts {
			break
		}
		l.logger.WithFields(logrus.Fields{
			"session_id": in.SessionID,
			"attempt":    attempt,
		}).Warn("turn index conflict, retrying")
	}
	if err != nil {
		return nil, err
	}

	l.metrics.RecordTurn(ctx, string(speaker))
	l.logger.WithFields(logrus.Fields{
		"session_id": turn.SessionID,
		"turn_index": turn.TurnIndex,
		"speaker":    turn.Speaker,
	}).Debug("turn appended")
	return turn, nil
}

// List returns the session's turns in index order
func (l *Ledger) List(ctx context.Context, sessionID string) ([]models.Turn, error) {
	return l.repo.ListBySession(ctx, sessionID)
}
