package prompts

import (
	"strings"

	"promptlab/models"
)

// DefaultOption is used when the mode-specific option is left blank
const DefaultOption = "default"

const generalSystemPrompt = "You are the assistant running the EXAONE demo. Answer kindly and clearly."

const summarySystemPrompt = "You are an expert at summarizing Korean text. Provide three key points and a one-line summary."

const translationSystemPrompt = "You are a professional translator. Translate into natural, fluent English."

// Pair is the system and user message sent for one submission
type Pair struct {
	System string
	User   string
}

// Build derives the message pair from the mode, the raw input and the mode option.
// The caller rejects empty input before getting here.
func Build(mode models.Mode, input, option string) Pair {
	if strings.TrimSpace(option) == "" {
		option = DefaultOption
	}

	return Pair{
		System: systemPrompt(mode),
		User:   userPrompt(mode, input, option),
	}
}

func systemPrompt(mode models.Mode) string {
	switch mode {
	case models.ModeSummary:
		return summarySystemPrompt
	case models.ModeTranslation:
		return translationSystemPrompt
	default:
		return generalSystemPrompt
	}
}

func userPrompt(mode models.Mode, input, option string) string {
	switch mode {
	case models.ModeSummary:
		return "Summarize the following text. Summary length: " + option + "\n\n" + input
	case models.ModeTranslation:
		return "Translate the following Korean into English. Tone: " + option + "\n\n" + input
	default:
		return input
	}
}
