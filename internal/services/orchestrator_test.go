package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
	"github.com/naduri/naduri-backend/internal/repository"
)

func audioFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIngestUserTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	res := env.userTurn(t, id, 0, 2000)
	assert.Equal(t, 1, res.TurnIndex)
	assert.Equal(t, models.SpeakerUser, res.Speaker)
	assert.Equal(t, "I had rice for breakfast", res.Transcript)
	assert.Equal(t, 0.2, res.RiskProbability)
	assert.Regexp(t, `^`+id+`_user_[0-9a-f]{32}\.m4a$`, res.AudioPath)
	assert.Equal(t, "/storage/audio/"+res.AudioPath, res.AudioURL)

	data, err := os.ReadFile(filepath.Join(env.audio, res.AudioPath))
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data)

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.NotNil(t, turns[0].Meta)
	require.NotNil(t, turns[0].Meta.Evaluation)
	require.NotNil(t, turns[0].Meta.RiskProbability)
	assert.Equal(t, 0.2, *turns[0].Meta.RiskProbability)
	assert.Empty(t, turns[0].Meta.Degraded)

	// the current utterance is not part of its own evaluation context
	require.Len(t, env.fake.evalHistory, 1)
	assert.Empty(t, env.fake.evalHistory[0])
}

func TestIngestUserTurn_TranscriptionFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	env.fake.transcribeErr = errBoom
	res := env.userTurn(t, id, 0, 1000)
	assert.Equal(t, TranscriptionFailedText, res.Transcript)

	env.fake.transcribeErr = nil
	env.fake.transcript = "   "
	res = env.userTurn(t, id, 1000, 2000)
	assert.Equal(t, TranscriptionFailedText, res.Transcript)

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, TranscriptionFailedText, turns[0].Text)
	assert.Equal(t, []string{"boom"}, turns[0].Meta.Degraded)
	assert.Equal(t, []string{"empty transcript"}, turns[1].Meta.Degraded)
}

func TestIngestUserTurn_EvaluationFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	env.fake.evaluateErr = errBoom
	res := env.userTurn(t, id, 0, 1000)
	assert.Equal(t, 0.0, res.RiskProbability)

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	eval := turns[0].Meta.Evaluation
	require.NotNil(t, eval)
	assert.Equal(t, EvaluationFailedText, eval.Rationale.Summary)
	assert.True(t, eval.AcousticAbnormality.NotEvaluated)
	assert.Equal(t, 0, eval.SemanticImpairment.PronounOveruse)
}

func TestIngestUserTurn_ClampsEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	evidence := make([]string, 10)
	for i := range evidence {
		evidence[i] = strings.Repeat("x", 300)
	}
	env.fake.evaluation = &models.Evaluation{
		SemanticImpairment:    models.SemanticImpairment{Vagueness: 42},
		InformationImpairment: models.InformationImpairment{LowSpecificity: 5},
		SyntacticImpairment:   models.SyntacticImpairment{VerbReduction: -3},
		RiskProbability:       7.5,
		Rationale: models.Rationale{
			Summary:           strings.Repeat("y", 900),
			EvidenceSentences: evidence,
		},
	}

	res := env.userTurn(t, id, 0, 1000)
	assert.Equal(t, 1.0, res.RiskProbability)

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	eval := turns[0].Meta.Evaluation
	require.NotNil(t, eval)
	assert.Equal(t, 1.0, eval.RiskProbability)
	assert.Equal(t, 1.0, *turns[0].Meta.RiskProbability)
	assert.Equal(t, models.MaxMarkerScore, eval.SemanticImpairment.Vagueness)
	assert.Equal(t, models.MaxMarkerScore, eval.InformationImpairment.LowSpecificity)
	assert.Equal(t, models.MinMarkerScore, eval.SyntacticImpairment.VerbReduction)
	assert.True(t, eval.AcousticAbnormality.NotEvaluated)
	assert.Len(t, []rune(eval.Rationale.Summary), llm.MaxSummaryRunes)
	require.Len(t, eval.Rationale.EvidenceSentences, llm.MaxEvidenceItems)
	assert.Len(t, []rune(eval.Rationale.EvidenceSentences[0]), llm.MaxEvidenceRunes)

	// the collaborator's value is left untouched
	assert.Equal(t, 7.5, env.fake.evaluation.RiskProbability)
}

func TestIngestUserTurn_ConcurrentSubmissionsAreGapless(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	const n = 12
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Orchestrator.IngestUserTurn(ctx, UserTurnInput{
				SessionID: id,
				StartMs:   int64(i * 1000),
				EndMs:     int64(i*1000 + 500),
				Audio:     []byte("audio"),
				Filename:  "clip.wav",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "submission %d", i)
	}

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.TurnIndex)
	}
	assert.Len(t, audioFiles(t, env.audio), n)
}

func TestIngestTurn_AppendFailureRemovesAudio(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ledger := NewLedger(&conflictingRepo{conflicts: 100}, lock.NewKeyedMutex(), nil, logger)
	orch := NewOrchestrator(env.svc.Sessions, ledger, env.svc.Audio, providers.FromProvider(env.fake),
		env.cfg.Conversation, time.Second, nil, logger)

	_, err := orch.IngestUserTurn(ctx, UserTurnInput{SessionID: id, StartMs: 0, EndMs: 1000, Audio: []byte("x"), Filename: "a.wav"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = orch.IngestAssistantTurn(ctx, AssistantTurnInput{SessionID: id, StartMs: 1000, EndMs: 2000})
	assert.ErrorIs(t, err, repository.ErrConflict)

	assert.Empty(t, audioFiles(t, env.audio))
}

func TestIngestUserTurn_RejectsBeforeStoringAudio(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	_, err := env.svc.Orchestrator.IngestUserTurn(ctx, UserTurnInput{SessionID: id, StartMs: 3000, EndMs: 1000, Audio: []byte("x")})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = env.svc.Orchestrator.IngestUserTurn(ctx, UserTurnInput{SessionID: "missing", StartMs: 0, EndMs: 1000, Audio: []byte("x")})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Empty(t, audioFiles(t, env.audio))
	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestIngestAssistantTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	env.userTurn(t, id, 0, 1000)
	res := env.assistantTurn(t, id, 1000, 3000)
	assert.Equal(t, 2, res.TurnIndex)
	assert.Equal(t, models.SpeakerAssistant, res.Speaker)
	assert.Equal(t, "That sounds lovely.", res.Text)
	assert.False(t, res.EndCall)
	assert.Regexp(t, `^`+id+`_assistant_[0-9a-f]{32}\.wav$`, res.AudioPath)

	require.Len(t, env.fake.replyReqs, 1)
	assert.False(t, env.fake.replyReqs[0].WrapUp)
	assert.Len(t, env.fake.replyReqs[0].Messages, 1)

	turns, err := env.svc.Ledger.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.NotNil(t, turns[1].Meta.EndCall)
	assert.False(t, *turns[1].Meta.EndCall)
	assert.Nil(t, turns[1].Meta.Evaluation)
}

func TestIngestAssistantTurn_GeneratorEndsCall(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	env.fake.reply.EndCall = true
	res := env.assistantTurn(t, id, 0, 1000)
	assert.True(t, res.EndCall)
}

func TestIngestAssistantTurn_WrapUpPolicy(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	var at int64
	for i := 0; i < 3; i++ {
		env.userTurn(t, id, at, at+500)
		res := env.assistantTurn(t, id, at+500, at+1000)
		assert.False(t, res.EndCall, "exchange %d", i)
		at += 1000
	}

	// six entries are now in the reply window
	res := env.assistantTurn(t, id, at, at+1000)
	assert.True(t, res.EndCall)
	last := env.fake.replyReqs[len(env.fake.replyReqs)-1]
	assert.True(t, last.WrapUp)
	assert.Len(t, last.Messages, 6)
}

func TestIngestAssistantTurn_WrapUpDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Orchestrator.conv.EndCallAfter = 0
	id := env.startSession(t)

	var at int64
	for i := 0; i < 5; i++ {
		env.userTurn(t, id, at, at+500)
		at += 500
	}
	res := env.assistantTurn(t, id, at, at+500)
	assert.False(t, res.EndCall)
	assert.False(t, env.fake.replyReqs[0].WrapUp)
}

func TestIngestAssistantTurn_EmptyReplyFallback(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	env.fake.reply.Text = "  "
	res := env.assistantTurn(t, id, 0, 1000)
	assert.Equal(t, ReplyFallbackText, res.Text)
	assert.Equal(t, []string{ReplyFallbackText}, env.fake.synthesized)
}

func TestIngestAssistantTurn_FatalFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeCollaborators)
	}{
		{name: "synthesis", setup: func(f *fakeCollaborators) { f.synthErr = errBoom }},
		{name: "empty audio", setup: func(f *fakeCollaborators) { f.speech = nil }},
		{name: "generation", setup: func(f *fakeCollaborators) { f.replyErr = errBoom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			id := env.startSession(t)
			tt.setup(env.fake)

			_, err := env.svc.Orchestrator.IngestAssistantTurn(ctx, AssistantTurnInput{SessionID: id, StartMs: 0, EndMs: 1000})
			assert.ErrorIs(t, err, ErrCollaborator)

			turns, err := env.svc.Ledger.List(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, turns)
			assert.Empty(t, audioFiles(t, env.audio))
		})
	}
}

func TestIngestAssistantTurn_RejectsInvalidRange(t *testing.T) {
	env := newTestEnv(t)
	id := env.startSession(t)

	_, err := env.svc.Orchestrator.IngestAssistantTurn(context.Background(), AssistantTurnInput{SessionID: id, StartMs: 5, EndMs: 1})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Empty(t, env.fake.replyReqs)
}
