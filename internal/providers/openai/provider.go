package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
)

// Operation names, used as circuit breaker keys and metric labels
const (
	OpTranscribe = "transcribe"
	OpEvaluate   = "evaluate"
	OpReply      = "reply"
	OpSynthesize = "synthesize"
	OpReport     = "report"
)

// deterministic stands in for temperature 0, which the client drops as an empty field
const deterministic = math.SmallestNonzeroFloat32

// ErrEmptyResponse is returned when the API answers without any choice
var ErrEmptyResponse = errors.New("empty completion response")

// Provider serves every collaborator role from an OpenAI compatible API
type Provider struct {
	client  *openai.Client
	cfg     config.ProviderConfig
	breaker *llm.CircuitBreaker
	retry   llm.RetryPolicy
	metrics *llm.MetricsCollector
	logger  *logrus.Logger
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a new OpenAI provider
func NewProvider(cfg config.ProviderConfig, breaker *llm.CircuitBreaker, metrics *llm.MetricsCollector, logger *logrus.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if breaker == nil {
		breaker = llm.NewCircuitBreaker(llm.DefaultBreakerConfig(), logger)
	}
	if metrics == nil {
		metrics = llm.NewNoopMetricsCollector()
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		breaker: breaker,
		retry:   llm.DefaultRetryPolicy(retryable),
		metrics: metrics,
		logger:  logger,
	}, nil
}

// call runs fn behind the breaker for op, retrying transient failures, and records its latency
func (p *Provider) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := p.breaker.Execute(op, func() error {
		return llm.Retry(ctx, p.retry, fn)
	})
	p.metrics.RecordRequest(ctx, op, err == nil, time.Since(start))
	if err != nil {
		p.logger.WithFields(logrus.Fields{"op": op, "latency_ms": time.Since(start).Milliseconds()}).
			WithError(err).Debug("collaborator call failed")
	}
	return err
}

// Transcribe sends the recording to the transcription endpoint
func (p *Provider) Transcribe(ctx context.Context, audio providers.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", nil
	}

	name := audio.Filename
	if name == "" {
		name = "audio.wav"
	}

	var resp openai.AudioResponse
	err := p.call(ctx, OpTranscribe, func() error {
		var err error
		resp, err = p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    p.cfg.TranscribeModel,
			FilePath: name,
			Reader:   bytes.NewReader(audio.Data),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return trimmed(resp.Text), nil
}

// Evaluate scores a transcript and normalizes whatever the model returns
func (p *Provider) Evaluate(ctx context.Context, transcript string, history []models.ContextMessage) (*models.Evaluation, error) {
	raw, err := p.complete(ctx, OpEvaluate, openai.ChatCompletionRequest{
		Model: p.cfg.EvalModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: evalSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: evalUserPrompt(transcript, history)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    deterministic,
	})
	if err != nil {
		return nil, err
	}

	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed evaluation output: %w", err)
	}
	return llm.NormalizeEvaluation(obj), nil
}

// GenerateReply produces the next assistant line, stripping the end marker into EndCall
func (p *Provider) GenerateReply(ctx context.Context, req providers.ReplyRequest) (*providers.Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: chatSystem(p.cfg.Language, req.WrapUp),
	})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	raw, err := p.complete(ctx, OpReply, openai.ChatCompletionRequest{
		Model:       p.cfg.ChatModel,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	text, endCall := splitEndMarker(raw)
	return &providers.Reply{Text: text, EndCall: endCall}, nil
}

// Synthesize renders text to speech in the configured format
func (p *Provider) Synthesize(ctx context.Context, text string) (*providers.SpeechAudio, error) {
	var data []byte
	err := p.call(ctx, OpSynthesize, func() error {
		resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(p.cfg.TTSModel),
			Input:          text,
			Voice:          openai.SpeechVoice(p.cfg.TTSVoice),
			ResponseFormat: openai.SpeechResponseFormat(p.cfg.TTSFormat),
		})
		if err != nil {
			return err
		}
		defer resp.Close()

		data, err = io.ReadAll(resp)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("speech synthesis returned no audio")
	}
	return &providers.SpeechAudio{Data: data, Format: p.cfg.TTSFormat}, nil
}

// GenerateReport summarizes the whole call
func (p *Provider) GenerateReport(ctx context.Context, conversation []models.ContextMessage) (*models.Report, error) {
	raw, err := p.complete(ctx, OpReport, openai.ChatCompletionRequest{
		Model: p.cfg.EvalModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reportSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: reportUserPrompt(conversation)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    deterministic,
	})
	if err != nil {
		return nil, err
	}

	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed report output: %w", err)
	}
	return llm.NormalizeReport(obj), nil
}

func (p *Provider) complete(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	var resp openai.ChatCompletionResponse
	err := p.call(ctx, op, func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, req)
		if err == nil && len(resp.Choices) == 0 {
			err = ErrEmptyResponse
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", op, err)
	}
	return trimmed(resp.Choices[0].Message.Content), nil
}

// retryable reports rate limiting, server errors and transport failures
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func trimmed(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
