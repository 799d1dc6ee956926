package openai

import (
	"fmt"
	"strings"

	"github.com/naduri/naduri-backend/internal/models"
)

// EndMarker is appended by the chat model when it wants to hang up
const EndMarker = "[END]"

// evalContextTail bounds how much history is quoted into the evaluation prompt
const evalContextTail = 6

const chatSystemPrompt = `You are a "health keeper" calling an elderly person who lives in the countryside to check in on them.
Speak warmly and brightly, like a grandchild or daughter would.
Ask about their health, meals and mood.
Keep every answer short: one or two sentences.

[IMPORTANT]
When the conversation is winding down, or the person wants to hang up,
say a kind goodbye and always put "[END]" at the very end of your message.`

const wrapUpInstruction = `[SYSTEM: The conversation has gone on long enough. Say a warm goodbye now and end your message with [END] to finish the call.]`

const evalSystemPrompt = `You do not make medical diagnoses.
Your only job is to report, in a structured way, linguistic risk signals observed in everyday conversation.

Criteria:
- semantic impairment (pronoun overuse, vagueness, ...)
- information impairment (missing core information, ...)
- syntactic impairment (sentence fragments, ...)

Rules:
- every score is an integer from 0 to 3
- no guessing
- evidence must quote the user's actual words
- never use the words "dementia", "disease" or "diagnosis"
- output exactly one JSON object`

const evalSchema = `Output JSON schema:
{
  "semantic_impairment": { "pronoun_overuse": 0, "vagueness": 0, "lexical_poverty": 0, "repetition": 0 },
  "information_impairment": { "missing_core_info": 0, "low_specificity": 0, "inappropriate_reference": 0 },
  "syntactic_impairment": { "verb_reduction": 0, "sentence_fragments": 0, "syntactic_simplification": 0 },
  "acoustic_abnormality": { "not_evaluated": true },
  "risk_probability": 0.0,
  "rationale": { "summary": "", "evidence_sentences": [] }
}`

const reportSystemPrompt = `You are an expert in cognitive health care for older adults.
Write an overall report based on the whole call between the user and the AI.
Summarize whether there were signs of cognitive risk and how the conversation went.
Output JSON.`

const reportSchema = `{
  "final_risk_score": 0.0,
  "summary_text": "overall summary of the conversation and notable observations..."
}`

func chatSystem(language string, wrapUp bool) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)
	if language != "" {
		fmt.Fprintf(&b, "\nAlways speak %s.", language)
	}
	if wrapUp {
		b.WriteString("\n\n")
		b.WriteString(wrapUpInstruction)
	}
	return b.String()
}

func evalUserPrompt(transcript string, history []models.ContextMessage) string {
	var b strings.Builder
	b.WriteString("The following is a user utterance.\n\n")

	tail := history
	if len(tail) > evalContextTail {
		tail = tail[len(tail)-evalContextTail:]
	}
	var lines []string
	for _, m := range tail {
		content := strings.TrimSpace(m.Content)
		if content != "" {
			lines = append(lines, m.Role+": "+content)
		}
	}
	if len(lines) > 0 {
		b.WriteString("[CONTEXT]\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("[TRANSCRIPT]\n")
	b.WriteString(transcript)
	b.WriteString("\n\nEvaluate the linguistic risk signals in this utterance.\n")
	b.WriteString(evalSchema)
	return b.String()
}

func reportUserPrompt(conversation []models.ContextMessage) string {
	lines := make([]string, 0, len(conversation))
	for _, m := range conversation {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return "The following is the full call transcript.\n" +
		strings.Join(lines, "\n") +
		"\n\nWrite an overall cognitive health report based on it.\n" +
		reportSchema
}

// splitEndMarker removes the end marker and reports whether it was present
func splitEndMarker(text string) (string, bool) {
	if !strings.Contains(text, EndMarker) {
		return strings.TrimSpace(text), false
	}
	return strings.TrimSpace(strings.ReplaceAll(text, EndMarker, "")), true
}
