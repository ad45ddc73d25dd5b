package tutor

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Emotions the model is allowed to report. Anything else degrades to
// neutral.
const (
	EmotionHappy       = "happy"
	EmotionExplaining  = "explaining"
	EmotionThinking    = "thinking"
	EmotionEncouraging = "encouraging"
	EmotionNeutral     = "neutral"
)

var validEmotions = map[string]bool{
	EmotionHappy:       true,
	EmotionExplaining:  true,
	EmotionThinking:    true,
	EmotionEncouraging: true,
	EmotionNeutral:     true,
}

// fallbackAnswer is substituted when the model produced nothing at all.
const fallbackAnswer = "I apologize, I encountered an error generating a response."

// prefixes the model tends to prepend despite instructions. Stripped
// case-insensitively when they appear as a literal prefix.
var strayPrefixes = []string{
	"Here's the answer:",
	"Here's my response:",
	"Sure, here you go:",
	"The answer is:",
	"Answer:",
}

// ParsedAnswer is the validated result recovered from model output. Both
// fields are always populated, whatever the input looked like.
type ParsedAnswer struct {
	Answer  string `json:"answer"`
	Emotion string `json:"emotion"`
}

// ParseModelOutput recovers an answer/emotion pair from free-form model
// text. Generative output is unreliable, so recovery is an ordered pipeline
// of text transforms: trim, strip known preambles, strip code fences, slice
// to the outermost braces, then parse. Any failure falls back to treating
// the whole original text as the answer with a neutral emotion; this
// function never fails.
func ParseModelOutput(raw string, logger *slog.Logger) ParsedAnswer {
	if logger == nil {
		logger = slog.Default()
	}

	original := strings.TrimSpace(raw)
	text := original

	for _, prefix := range strayPrefixes {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}

	text = stripCodeFences(text)

	// Keep only the span between the first '{' and the last '}' so prose
	// around the JSON object is discarded.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		text = text[start : end+1]
	}

	var decoded struct {
		Answer  *string `json:"answer"`
		Emotion string  `json:"emotion"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil || decoded.Answer == nil {
		if err != nil {
			logger.Warn("model output is not valid JSON, using raw text", "error", err)
		} else {
			logger.Warn("model output JSON missing answer field, using raw text")
		}
		return fallback(original)
	}

	answer := cleanAnswer(*decoded.Answer)
	if answer == "" {
		return fallback(original)
	}

	emotion := strings.ToLower(strings.TrimSpace(decoded.Emotion))
	if emotion == "" {
		emotion = EmotionNeutral
	} else if !validEmotions[emotion] {
		logger.Warn("model reported unknown emotion, defaulting to neutral", "emotion", emotion)
		emotion = EmotionNeutral
	}

	return ParsedAnswer{Answer: answer, Emotion: emotion}
}

// fallback returns the whole original text as the answer, or the apology
// string when even that is empty.
func fallback(original string) ParsedAnswer {
	answer := original
	if answer == "" {
		answer = fallbackAnswer
	}
	return ParsedAnswer{Answer: answer, Emotion: EmotionNeutral}
}

// stripCodeFences removes leading/trailing triple-backtick markers with an
// optional language tag.
func stripCodeFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "```json"))
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(strings.TrimPrefix(text, "```"))
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}
	return text
}

// cleanAnswer strips stray brace characters left at the boundaries when the
// brace slice was imperfect.
func cleanAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	for strings.HasPrefix(answer, "{") || strings.HasPrefix(answer, "}") {
		answer = strings.TrimSpace(answer[1:])
	}
	for strings.HasSuffix(answer, "{") || strings.HasSuffix(answer, "}") {
		answer = strings.TrimSpace(answer[:len(answer)-1])
	}
	return answer
}
