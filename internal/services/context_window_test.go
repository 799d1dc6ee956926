package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naduri/naduri-backend/internal/models"
)

func turnsOf(texts ...string) []models.Turn {
	turns := make([]models.Turn, 0, len(texts))
	for i, text := range texts {
		speaker := models.SpeakerUser
		if i%2 == 1 {
			speaker = models.SpeakerAssistant
		}
		turns = append(turns, models.Turn{TurnIndex: i + 1, Speaker: speaker, Text: text})
	}
	return turns
}

func TestContextWindow(t *testing.T) {
	turns := turnsOf("u1", "a1", "", "a2", "  ", "a3", "u4")

	full := ContextWindow(turns, 0)
	assert.Equal(t, []models.ContextMessage{
		{Role: "user", Content: "u1"},
		{Role: "assistant", Content: "a1"},
		{Role: "assistant", Content: "a2"},
		{Role: "assistant", Content: "a3"},
		{Role: "user", Content: "u4"},
	}, full)

	last := ContextWindow(turns, 2)
	assert.Equal(t, []models.ContextMessage{
		{Role: "assistant", Content: "a3"},
		{Role: "user", Content: "u4"},
	}, last)

	assert.Len(t, ContextWindow(turns, 50), 5)
	assert.Len(t, ContextWindow(turns, -1), 5)
	assert.Empty(t, ContextWindow(nil, 10))
}

func TestBuildContext_ReadsLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.startSession(t)

	env.userTurn(t, id, 0, 1000)
	env.assistantTurn(t, id, 1000, 2000)

	messages, err := env.svc.Ledger.BuildContext(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, env.fake.transcript, messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
}
