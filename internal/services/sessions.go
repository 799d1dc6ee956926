package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/repository"
)

// sessionIDLength is the number of hex characters kept from a random UUID
const sessionIDLength = 16

// SessionService manages the session lifecycle
type SessionService struct {
	repo   repository.SessionRepository
	logger *logrus.Logger
	now    func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(repo repository.SessionRepository, logger *logrus.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session with a fresh id
func (s *SessionService) Create(ctx context.Context, deviceInfo string) (*models.Session, error) {
	session := &models.Session{
		ID:         NewSessionID(),
		StartedAt:  s.now(),
		DeviceInfo: models.TruncateDeviceInfo(deviceInfo),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.WithField("session_id", session.ID).Info("session started")
	return session, nil
}

// End stamps the end time. Calling it again keeps the first timestamp.
func (s *SessionService) End(ctx context.Context, id string) (*models.Session, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Ended() {
		s.logger.WithField("session_id", id).Debug("session already ended")
		return current, nil
	}

	session, err := s.repo.MarkEnded(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": id,
		"ended_at":   session.EndedAt,
	}).Info("session ended")
	return session, nil
}

// Get returns a session or repository.ErrNotFound
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.repo.Get(ctx, id)
}

// SetFinalReport overwrites the stored report
func (s *SessionService) SetFinalReport(ctx context.Context, id string, report *models.Report) error {
	return s.repo.SetFinalReport(ctx, id, report)
}

// NewSessionID returns 16 lowercase hex characters from a random UUID
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDLength]
}
