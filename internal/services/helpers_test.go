package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/database/dbtest"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
	"github.com/naduri/naduri-backend/internal/repository/sqlrepo"
	"github.com/naduri/naduri-backend/internal/storage"
)

// fakeCollaborators scripts every collaborator role and records what it was asked
type fakeCollaborators struct {
	mu sync.Mutex

	transcript    string
	transcribeErr error

	evaluation  *models.Evaluation
	evaluateErr error
	evalHistory [][]models.ContextMessage

	reply       providers.Reply
	replyErr    error
	replyReqs   []providers.ReplyRequest
	speech      []byte
	synthErr    error
	synthesized []string

	report      *models.Report
	reportErr   error
	reportCalls int
}

func newFakeCollaborators() *fakeCollaborators {
	return &fakeCollaborators{
		transcript: "I had rice for breakfast",
		evaluation: &models.Evaluation{RiskProbability: 0.2, AcousticAbnormality: models.AcousticAbnormality{NotEvaluated: true}},
		reply:      providers.Reply{Text: "That sounds lovely."},
		speech:     []byte("RIFF"),
		report:     &models.Report{FinalRiskScore: 0.1, SummaryText: "calm"},
	}
}

func (f *fakeCollaborators) Transcribe(ctx context.Context, audio providers.Audio) (string, error) {
	return f.transcript, f.transcribeErr
}

func (f *fakeCollaborators) Evaluate(ctx context.Context, transcript string, history []models.ContextMessage) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalHistory = append(f.evalHistory, history)
	if f.evaluateErr != nil {
		return nil, f.evaluateErr
	}
	return f.evaluation, nil
}

func (f *fakeCollaborators) GenerateReply(ctx context.Context, req providers.ReplyRequest) (*providers.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replyReqs = append(f.replyReqs, req)
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	r := f.reply
	return &r, nil
}

func (f *fakeCollaborators) Synthesize(ctx context.Context, text string) (*providers.SpeechAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthesized = append(f.synthesized, text)
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &providers.SpeechAudio{Data: f.speech, Format: "wav"}, nil
}

func (f *fakeCollaborators) GenerateReport(ctx context.Context, conversation []models.ContextMessage) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls++
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	r := *f.report
	return &r, nil
}

var errBoom = errors.New("boom")

type testEnv struct {
	svc   *Services
	fake  *fakeCollaborators
	audio string
	cfg   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	audioDir := filepath.Join(t.TempDir(), "audio")
	audio, err := storage.NewAudioStore(audioDir)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Providers: config.ProviderConfig{Timeout: 5 * time.Second},
		Conversation: config.ConversationConfig{
			EvalContextLimit:  10,
			ReplyContextLimit: 20,
			EndCallAfter:      6,
		},
	}
	fake := newFakeCollaborators()

	svc := NewServices(cfg, Dependencies{
		SessionRepo:   sqlrepo.NewSessionRepository(db.DB),
		TurnRepo:      sqlrepo.NewTurnRepository(db.DB),
		Locker:        lock.NewKeyedMutex(),
		Audio:         audio,
		Collaborators: providers.FromProvider(fake),
		Logger:        logger,
	})
	return &testEnv{svc: svc, fake: fake, audio: audioDir, cfg: cfg}
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()
	s, err := e.svc.Sessions.Create(context.Background(), "test-device")
	require.NoError(t, err)
	return s.ID
}

func (e *testEnv) userTurn(t *testing.T, sessionID string, start, end int64) *UserTurnResult {
	t.Helper()
	res, err := e.svc.Orchestrator.IngestUserTurn(context.Background(), UserTurnInput{
		SessionID: sessionID,
		StartMs:   start,
		EndMs:     end,
		Audio:     []byte("audio"),
		Filename:  "clip.m4a",
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) assistantTurn(t *testing.T, sessionID string, start, end int64) *AssistantTurnResult {
	t.Helper()
	res, err := e.svc.Orchestrator.IngestAssistantTurn(context.Background(), AssistantTurnInput{
		SessionID: sessionID,
		StartMs:   start,
		EndMs:     end,
	})
	require.NoError(t, err)
	return res
}
