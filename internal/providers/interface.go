package providers

import (
	"context"

	"github.com/naduri/naduri-backend/internal/models"
)

// Audio is an uploaded recording handed to the transcriber
type Audio struct {
	Data     []byte
	Filename string
}

// Transcriber converts user speech to text. An empty result is not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Evaluator rates one user utterance for linguistic risk markers.
// Implementations return a normalized evaluation or an error; they never return partial data.
type Evaluator interface {
	Evaluate(ctx context.Context, transcript string, history []models.ContextMessage) (*models.Evaluation, error)
}

// ReplyRequest is the input for the next assistant utterance
type ReplyRequest struct {
	Messages []models.ContextMessage
	// WrapUp asks the generator to say goodbye and end the call
	WrapUp bool
}

// Reply is the generated assistant utterance
type Reply struct {
	Text    string
	EndCall bool
}

// ReplyGenerator produces the assistant's next utterance
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (*Reply, error)
}

// SpeechAudio is synthesized speech in an encoded container format
type SpeechAudio struct {
	Data   []byte
	Format string
}

// Synthesizer turns reply text into speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*SpeechAudio, error)
}

// Reporter summarizes a whole call
type Reporter interface {
	GenerateReport(ctx context.Context, conversation []models.ContextMessage) (*models.Report, error)
}

// Collaborators bundles the external AI services the orchestrator depends on
type Collaborators struct {
	Transcriber Transcriber
	Evaluator   Evaluator
	Replier     ReplyGenerator
	Synthesizer Synthesizer
	Reporter    Reporter
}

// Provider is a backend able to serve every collaborator role
type Provider interface {
	Transcriber
	Evaluator
	ReplyGenerator
	Synthesizer
	Reporter
}

// FromProvider fills every role from a single backend
func FromProvider(p Provider) Collaborators {
	return Collaborators{
		Transcriber: p,
		Evaluator:   p,
		Replier:     p,
		Synthesizer: p,
		Reporter:    p,
	}
}
