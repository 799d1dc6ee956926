package models

import (
	"fmt"
	"time"
)

// Speaker identifies who produced a turn
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// ParseSpeaker validates a speaker name
func ParseSpeaker(s string) (Speaker, error) {
	switch Speaker(s) {
	case SpeakerUser, SpeakerAssistant:
		return Speaker(s), nil
	}
	return "", fmt.Errorf("unknown speaker %q", s)
}

// Role returns the chat role used when the turn is replayed as context
func (s Speaker) Role() string {
	if s == SpeakerAssistant {
		return "assistant"
	}
	return "user"
}

// Turn is one utterance anchored to a time range within a session
type Turn struct {
	SessionID string    `json:"session_id"`
	TurnIndex int       `json:"turn_index"`
	Speaker   Speaker   `json:"speaker"`
	StartMs   int64     `json:"start_ms"`
	EndMs     int64     `json:"end_ms"`
	Text      string    `json:"text"`
	AudioPath string    `json:"audio_path"`
	Meta      *TurnMeta `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnMeta is the structured payload attached to a turn.
// User turns carry the evaluation, assistant turns carry the end-of-call flag.
type TurnMeta struct {
	Evaluation      *Evaluation `json:"evaluation,omitempty"`
	RiskProbability *float64    `json:"risk_probability,omitempty"`
	EndCall         *bool       `json:"end_call,omitempty"`
	Degraded        []string    `json:"degraded,omitempty"`

	// Set when stored metadata could not be decoded
	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// ContextMessage is a role/content pair handed to the reasoning collaborators
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
