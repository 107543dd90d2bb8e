package models

import (
	"fmt"
	"strings"
)

// Mode is the fixed task a page instance is configured for
type Mode string

const (
	ModeGeneral     Mode = "general"
	ModeSummary     Mode = "summary"
	ModeTranslation Mode = "translation"
)

// Modes lists every supported mode in display order
var Modes = []Mode{ModeGeneral, ModeSummary, ModeTranslation}

// ParseMode maps user-facing text onto a Mode. Empty input selects the general page.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGeneral:
		return ModeGeneral, nil
	case ModeSummary:
		return ModeSummary, nil
	case ModeTranslation:
		return ModeTranslation, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Valid reports whether m is one of the supported modes
func (m Mode) Valid() bool {
	switch m {
	case ModeGeneral, ModeSummary, ModeTranslation:
		return true
	}
	return false
}

// Title is the heading shown on the mode's page
func (m Mode) Title() string {
	switch m {
	case ModeSummary:
		return "Summary"
	case ModeTranslation:
		return "Translation"
	default:
		return "General"
	}
}

// OptionLabel names the mode-specific option, empty when the mode has none
func (m Mode) OptionLabel() string {
	switch m {
	case ModeSummary:
		return "Summary length"
	case ModeTranslation:
		return "Tone"
	default:
		return ""
	}
}

// OptionChoices are the values offered for the mode-specific option
func (m Mode) OptionChoices() []string {
	switch m {
	case ModeSummary:
		return []string{"default", "short", "medium", "long"}
	case ModeTranslation:
		return []string{"default", "formal", "casual", "business"}
	default:
		return nil
	}
}
