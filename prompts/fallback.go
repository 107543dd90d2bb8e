package prompts

import (
	"fmt"

	"promptlab/models"
)

// previewRunes is how much of the input the summary demo quotes
const previewRunes = 40

// Fallback returns the canned demo answer shown when no API key is configured.
// It never touches the network, so the whole flow can be exercised offline.
func Fallback(mode models.Mode, input string) string {
	switch mode {
	case models.ModeSummary:
		return fmt.Sprintf("Summary demo\n"+
			"- Point 1: %s...\n"+
			"- Point 2: Separated out the main ideas.\n"+
			"- Point 3: Wrapped up the conclusion.\n\n"+
			"One-line summary: Condensed the core of the text you entered.", preview(input))
	case models.ModeTranslation:
		return fmt.Sprintf("Demo Translation:\n%s\n\n(Enter a real API key to get a natural translation.)", input)
	default:
		return fmt.Sprintf("This is an EXAONE demo answer.\n\n"+
			"Showing a test reply for \"%s\".\n"+
			"Enter an API key to see live responses.", input)
	}
}

func preview(input string) string {
	r := []rune(input)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r)
}
