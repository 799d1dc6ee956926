package services

import (
	"context"
	"strings"

	"github.com/naduri/naduri-backend/internal/models"
)

// ContextWindow maps turns to chat messages, drops blank text and keeps the last
// limit entries in chronological order. A limit <= 0 keeps everything.
func ContextWindow(turns []models.Turn, limit int) []models.ContextMessage {
	messages := make([]models.ContextMessage, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		messages = append(messages, models.ContextMessage{
			Role:    t.Speaker.Role(),
			Content: t.Text,
		})
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages
}

// BuildContext loads the ledger and applies ContextWindow
func (l *Ledger) BuildContext(ctx context.Context, sessionID string, limit int) ([]models.ContextMessage, error) {
	turns, err := l.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ContextWindow(turns, limit), nil
}
