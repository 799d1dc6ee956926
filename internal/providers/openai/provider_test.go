package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
)

// chatResponse builds a minimal chat completion body
func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(body)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p, err := NewProvider(config.ProviderConfig{
		APIKey:          "sk-test",
		BaseURL:         srv.URL + "/v1",
		ChatModel:       "gpt-4o-mini",
		EvalModel:       "gpt-4o-mini",
		TranscribeModel: "gpt-4o-mini-transcribe",
		TTSModel:        "tts-1",
		TTSVoice:        "echo",
		TTSFormat:       "wav",
		Language:        "Korean",
	}, nil, nil, logger)
	require.NoError(t, err)
	p.retry.BaseDelay = time.Millisecond
	return p
}

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider(config.ProviderConfig{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestGenerateReply_StripsEndMarker(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("Take care, talk soon! [END]"))
	})

	reply, err := p.GenerateReply(t.Context(), providers.ReplyRequest{
		Messages: []models.ContextMessage{{Role: "user", Content: "I have to go now"}},
		WrapUp:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Take care, talk soon!", reply.Text)
	assert.True(t, reply.EndCall)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, wrapUpInstruction)
	assert.Contains(t, got.Messages[0].Content, "Korean")
	assert.Equal(t, "I have to go now", got.Messages[1].Content)
}

func TestGenerateReply_NoMarker(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("  How did you sleep?  "))
	})

	reply, err := p.GenerateReply(t.Context(), providers.ReplyRequest{})
	require.NoError(t, err)
	assert.Equal(t, "How did you sleep?", reply.Text)
	assert.False(t, reply.EndCall)
}

func TestEvaluate_NormalizesFencedOutput(t *testing.T) {
	content := "```json\n" + `{"semantic_impairment": {"pronoun_overuse": 7, "vagueness": "2"},
		"risk_probability": 1.5,
		"rationale": {"summary": "short", "evidence_sentences": ["that thing"]}}` + "\n```"
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(content))
	})

	eval, err := p.Evaluate(t.Context(), "I put that thing over there", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, eval.SemanticImpairment.PronounOveruse)
	assert.Equal(t, 2, eval.SemanticImpairment.Vagueness)
	assert.Equal(t, 1.0, eval.RiskProbability)
	assert.True(t, eval.AcousticAbnormality.NotEvaluated)
	assert.Equal(t, []string{"that thing"}, eval.Rationale.EvidenceSentences)
}

func TestEvaluate_MalformedOutput(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("sorry, I cannot help with that"))
	})

	_, err := p.Evaluate(t.Context(), "hello", nil)
	assert.Error(t, err)
}

func TestEvaluate_ServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	})

	_, err := p.Evaluate(t.Context(), "hello", nil)
	assert.Error(t, err)
}

func TestEvaluate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"message":"busy","type":"server_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"risk_probability": 0.5}`))
	})

	eval, err := p.Evaluate(t.Context(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, eval.RiskProbability)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvaluate_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	})

	_, err := p.Evaluate(t.Context(), "hello", nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateReport(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"final_risk_score": 0.25, "summary_text": "calm call"}`))
	})

	report, err := p.GenerateReport(t.Context(), []models.ContextMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, 0.25, report.FinalRiskScore)
	assert.Equal(t, "calm call", report.SummaryText)
}

func TestTranscribe(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-4o-mini-transcribe", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text": " good morning "}`)
	})

	text, err := p.Transcribe(t.Context(), providers.Audio{Data: []byte("RIFF"), Filename: "a.wav"})
	require.NoError(t, err)
	assert.Equal(t, "good morning", text)

	text, err = p.Transcribe(t.Context(), providers.Audio{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSynthesize(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), `"voice":"echo"`))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFdata"))
	})

	speech, err := p.Synthesize(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), speech.Data)
	assert.Equal(t, "wav", speech.Format)
}

func TestEvalUserPrompt_QuotesRecentContext(t *testing.T) {
	var history []models.ContextMessage
	for i := 0; i < 8; i++ {
		history = append(history, models.ContextMessage{Role: "user", Content: string(rune('a' + i))})
	}
	history = append(history, models.ContextMessage{Role: "assistant", Content: "   "})

	prompt := evalUserPrompt("now", history)
	assert.NotContains(t, prompt, "user: a\n")
	assert.NotContains(t, prompt, "user: c\n")
	assert.Contains(t, prompt, "user: d\n")
	assert.Contains(t, prompt, "user: h\n")
	assert.NotContains(t, prompt, "assistant:")
	assert.Contains(t, prompt, "[TRANSCRIPT]\nnow")
}
