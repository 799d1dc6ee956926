package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/naduri/naduri-backend/internal/models"
)

// ExportedTurn is one turn in the JSON export
type ExportedTurn struct {
	TurnIndex int              `json:"turn_index"`
	Speaker   models.Speaker   `json:"speaker"`
	StartMs   int64            `json:"start_ms"`
	EndMs     int64            `json:"end_ms"`
	Text      string           `json:"text"`
	AudioPath string           `json:"audio_path"`
	Meta      *models.TurnMeta `json:"meta"`
}

// SessionExport is the structured dump of a session
type SessionExport struct {
	SessionID   string         `json:"session_id"`
	StartedAt   time.Time      `json:"started_at_utc"`
	EndedAt     *time.Time     `json:"ended_at_utc"`
	DeviceInfo  *string        `json:"device_info"`
	FinalReport *models.Report `json:"final_report"`
	Turns       []ExportedTurn `json:"turns"`
}

// Exporter renders session transcripts
type Exporter struct {
	sessions *SessionService
	ledger   *Ledger
}

// NewExporter creates a new transcript exporter
func NewExporter(sessions *SessionService, ledger *Ledger) *Exporter {
	return &Exporter{sessions: sessions, ledger: ledger}
}

// ExportText renders one "[MM:SS.mmm - MM:SS.mmm] speaker: text" line per turn
func (e *Exporter) ExportText(ctx context.Context, id string) (string, error) {
	if _, err := e.sessions.Get(ctx, id); err != nil {
		return "", err
	}
	turns, err := e.ledger.List(ctx, id)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s - %s] %s: %s", FormatOffset(t.StartMs), FormatOffset(t.EndMs), t.Speaker, t.Text))
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// ExportJSON returns the session with all its turns
func (e *Exporter) ExportJSON(ctx context.Context, id string) (*SessionExport, error) {
	session, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := e.ledger.List(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &SessionExport{
		SessionID:   session.ID,
		StartedAt:   session.StartedAt,
		EndedAt:     session.EndedAt,
		DeviceInfo:  session.DeviceInfo,
		FinalReport: session.FinalReport,
		Turns:       make([]ExportedTurn, 0, len(turns)),
	}
	for _, t := range turns {
		out.Turns = append(out.Turns, ExportedTurn{
			TurnIndex: t.TurnIndex,
			Speaker:   t.Speaker,
			StartMs:   t.StartMs,
			EndMs:     t.EndMs,
			Text:      t.Text,
			AudioPath: t.AudioPath,
			Meta:      t.Meta,
		})
	}
	return out, nil
}

// FormatOffset renders milliseconds as MM:SS.mmm; negative values clamp to zero
func FormatOffset(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	sec := ms / 1000
	return fmt.Sprintf("%02d:%02d.%03d", sec/60, sec%60, ms%1000)
}
