package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
	"github.com/naduri/naduri-backend/internal/storage"
)

// Placeholder texts substituted when a collaborator gives nothing usable
const (
	TranscriptionFailedText = "transcription failed"
	EvaluationFailedText    = "evaluation failed"
	ReplyFallbackText       = "could you say that again?"
)

// UserTurnInput is an uploaded user utterance
type UserTurnInput struct {
	SessionID string
	StartMs   int64
	EndMs     int64
	Audio     []byte
	Filename  string
}

// UserTurnResult is returned after a user turn is stored
type UserTurnResult struct {
	TurnIndex       int            `json:"turn_index"`
	Speaker         models.Speaker `json:"speaker"`
	StartMs         int64          `json:"start_ms"`
	EndMs           int64          `json:"end_ms"`
	Transcript      string         `json:"transcript"`
	RiskProbability float64        `json:"risk_probability"`
	AudioPath       string         `json:"audio_path"`
	AudioURL        string         `json:"audio_url"`
}

// AssistantTurnInput requests the next assistant utterance
type AssistantTurnInput struct {
	SessionID string
	StartMs   int64
	EndMs     int64
}

// AssistantTurnResult is returned after an assistant turn is stored
type AssistantTurnResult struct {
	TurnIndex int            `json:"turn_index"`
	Speaker   models.Speaker `json:"speaker"`
	StartMs   int64          `json:"start_ms"`
	EndMs     int64          `json:"end_ms"`
	Text      string         `json:"tts_text"`
	EndCall   bool           `json:"end_call"`
	AudioPath string         `json:"audio_path"`
	AudioURL  string         `json:"audio_url"`
}

// Orchestrator drives user and assistant turn ingestion
type Orchestrator struct {
	sessions *SessionService
	ledger   *Ledger
	audio    *storage.AudioStore
	collab   providers.Collaborators
	conv     config.ConversationConfig
	timeout  time.Duration
	metrics  *llm.MetricsCollector
	logger   *logrus.Logger
}

// NewOrchestrator creates a new turn orchestrator
func NewOrchestrator(
	sessions *SessionService,
	ledger *Ledger,
	audio *storage.AudioStore,
	collab providers.Collaborators,
	conv config.ConversationConfig,
	timeout time.Duration,
	metrics *llm.MetricsCollector,
	logger *logrus.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = llm.NewNoopMetricsCollector()
	}
	return &Orchestrator{
		sessions: sessions,
		ledger:   ledger,
		audio:    audio,
		collab:   collab,
		conv:     conv,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// IngestUserTurn stores the audio, transcribes and evaluates it, then appends the turn.
// Transcription and evaluation failures degrade to placeholders.
func (o *Orchestrator) IngestUserTurn(ctx context.Context, in UserTurnInput) (*UserTurnResult, error) {
	if err := o.precheck(ctx, in.SessionID, in.StartMs, in.EndMs); err != nil {
		return nil, err
	}

	name, err := o.audio.Save(in.SessionID, models.SpeakerUser, storage.ExtensionFromFilename(in.Filename), in.Audio)
	if err != nil {
		return nil, err
	}

	log := o.logger.WithField("session_id", in.SessionID)
	var degraded []string

	transcript := o.transcribe(ctx, in.Audio, in.Filename)
	if transcript.Degraded {
		degraded = append(degraded, transcript.Reason)
		o.metrics.RecordDegraded(ctx, "transcribe")
		log.WithField("reason", transcript.Reason).Warn("transcription degraded")
	}

	history, err := o.ledger.BuildContext(ctx, in.SessionID, o.conv.EvalContextLimit)
	if err != nil {
		o.discardAudio(log, name)
		return nil, err
	}

	evaluation := o.evaluate(ctx, transcript.Value, history)
	if evaluation.Degraded {
		degraded = append(degraded, evaluation.Reason)
		o.metrics.RecordDegraded(ctx, "evaluate")
		log.WithField("reason", evaluation.Reason).Warn("evaluation degraded")
	}

	risk := evaluation.Value.RiskProbability
	turn, err := o.ledger.Append(ctx, TurnInput{
		SessionID: in.SessionID,
		Speaker:   string(models.SpeakerUser),
		StartMs:   in.StartMs,
		EndMs:     in.EndMs,
		Text:      transcript.Value,
		AudioPath: name,
		Meta: &models.TurnMeta{
			Evaluation:      evaluation.Value,
			RiskProbability: &risk,
			Degraded:        degraded,
		},
	})
	if err != nil {
		o.discardAudio(log, name)
		return nil, err
	}

	return &UserTurnResult{
		TurnIndex:       turn.TurnIndex,
		Speaker:         turn.Speaker,
		StartMs:         turn.StartMs,
		EndMs:           turn.EndMs,
		Transcript:      turn.Text,
		RiskProbability: risk,
		AudioPath:       name,
		AudioURL:        storage.URL(name),
	}, nil
}

// IngestAssistantTurn generates and synthesizes the next reply, then appends the turn.
// Reply generation and synthesis failures are returned as ErrCollaborator.
func (o *Orchestrator) IngestAssistantTurn(ctx context.Context, in AssistantTurnInput) (*AssistantTurnResult, error) {
	if err := o.precheck(ctx, in.SessionID, in.StartMs, in.EndMs); err != nil {
		return nil, err
	}

	history, err := o.ledger.BuildContext(ctx, in.SessionID, o.conv.ReplyContextLimit)
	if err != nil {
		return nil, err
	}

	wrapUp := o.conv.EndCallAfter > 0 && len(history) >= o.conv.EndCallAfter

	reply, err := o.generateReply(ctx, history, wrapUp)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(reply.Text)
	if text == "" {
		text = ReplyFallbackText
	}
	endCall := reply.EndCall || wrapUp

	speech, err := o.synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	name, err := o.audio.Save(in.SessionID, models.SpeakerAssistant, speech.Format, speech.Data)
	if err != nil {
		return nil, err
	}

	turn, err := o.ledger.Append(ctx, TurnInput{
		SessionID: in.SessionID,
		Speaker:   string(models.SpeakerAssistant),
		StartMs:   in.StartMs,
		EndMs:     in.EndMs,
		Text:      text,
		AudioPath: name,
		Meta:      &models.TurnMeta{EndCall: &endCall},
	})
	if err != nil {
		o.discardAudio(o.logger.WithField("session_id", in.SessionID), name)
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"session_id": in.SessionID,
		"turn_index": turn.TurnIndex,
		"end_call":   endCall,
		"wrap_up":    wrapUp,
	}).Info("assistant turn stored")

	return &AssistantTurnResult{
		TurnIndex: turn.TurnIndex,
		Speaker:   turn.Speaker,
		StartMs:   turn.StartMs,
		EndMs:     turn.EndMs,
		Text:      text,
		EndCall:   endCall,
		AudioPath: name,
		AudioURL:  storage.URL(name),
	}, nil
}

// discardAudio removes a stored file whose turn could not be appended
func (o *Orchestrator) discardAudio(log *logrus.Entry, name string) {
	if err := o.audio.Remove(name); err != nil {
		log.WithError(err).WithField("audio_path", name).Warn("failed to remove orphaned audio")
	}
}

// precheck rejects unknown sessions and bad ranges before anything is stored
func (o *Orchestrator) precheck(ctx context.Context, sessionID string, startMs, endMs int64) error {
	if _, err := o.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	return ValidateRange(startMs, endMs)
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte, filename string) llm.Outcome[string] {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	text, err := o.collab.Transcriber.Transcribe(ctx, providers.Audio{Data: audio, Filename: filename})
	if err != nil {
		return llm.Degraded(TranscriptionFailedText, err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return llm.Degraded(TranscriptionFailedText, "empty transcript")
	}
	return llm.OK(text)
}

func (o *Orchestrator) evaluate(ctx context.Context, transcript string, history []models.ContextMessage) llm.Outcome[*models.Evaluation] {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	evaluation, err := o.collab.Evaluator.Evaluate(ctx, transcript, history)
	if err != nil {
		return llm.Degraded(models.NewZeroEvaluation(EvaluationFailedText), err.Error())
	}
	if evaluation == nil {
		return llm.Degraded(models.NewZeroEvaluation(EvaluationFailedText), "empty evaluation")
	}
	return llm.OK(llm.ClampEvaluation(evaluation))
}

func (o *Orchestrator) generateReply(ctx context.Context, history []models.ContextMessage, wrapUp bool) (*providers.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	reply, err := o.collab.Replier.GenerateReply(ctx, providers.ReplyRequest{Messages: history, WrapUp: wrapUp})
	if err != nil {
		return nil, fmt.Errorf("%w: reply generation: %v", ErrCollaborator, err)
	}
	if reply == nil {
		return &providers.Reply{}, nil
	}
	return reply, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) (*providers.SpeechAudio, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	speech, err := o.collab.Synthesizer.Synthesize(ctx, text)
	if err == nil && (speech == nil || len(speech.Data) == 0) {
		err = errors.New("no audio returned")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: speech synthesis: %v", ErrCollaborator, err)
	}
	return speech, nil
}
