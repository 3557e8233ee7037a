package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/bft-labs/modelhost/pkg/transport"
)

// MaxInputChars is the longest input passed to the model; longer text is cut.
const MaxInputChars = 1500

// Confidence reported for each parsed label.
const (
	confidenceAI        = 95
	confidenceHuman     = 90
	confidenceUncertain = 60
)

const promptTemplate = `<start_of_turn>user
Classify this text as exactly 'ai_generated' or 'human_written':

"%s"

<end_of_turn>
<start_of_turn>model
`

// ClassificationOptions is greedy decoding with the chat-turn stop tokens.
func ClassificationOptions() CompletionOptions {
	return CompletionOptions{
		NPredict:    10,
		Temperature: 0,
		TopK:        1,
		TopP:        1,
		Stop:        []string{"\n", "<end_of_turn>", "<start_of_turn>"},
	}
}

// Truncate cuts text to MaxInputChars runes.
func Truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxInputChars {
		return text
	}
	return string(r[:MaxInputChars])
}

// BuildPrompt wraps the truncated text in the classification prompt.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, Truncate(text))
}

// ParseLabel maps raw model output to a label. Anything unrecognised is
// uncertain.
func ParseLabel(output string) transport.Classification {
	normalized := strings.ToLower(strings.TrimSpace(output))

	var label transport.Label
	var confidence int
	switch {
	case strings.Contains(normalized, string(transport.LabelAIGenerated)) || strings.HasPrefix(normalized, "ai"):
		label, confidence = transport.LabelAIGenerated, confidenceAI
	case strings.Contains(normalized, string(transport.LabelHumanWritten)) || strings.HasPrefix(normalized, "human"):
		label, confidence = transport.LabelHumanWritten, confidenceHuman
	default:
		label, confidence = transport.LabelUncertain, confidenceUncertain
	}
	return transport.Classification{Label: label, Confidence: &confidence, Raw: output}
}

// Percent converts byte progress to a load percentage. It never reports 100
// while loading; only the ready transition does. ok is false when total is
// unknown.
func Percent(loaded, total int64) (pct int, ok bool) {
	if total <= 0 {
		return 0, false
	}
	p := int(math.Round(float64(loaded) / float64(total) * 100))
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p, true
}
