package models

import (
	"math"
	"strconv"
	"strings"
)

// Built-in connection defaults
const (
	DefaultEndpoint    = "https://api.friendli.ai/v1/chat/completions"
	DefaultModel       = "LGAI-EXAONE/K-EXAONE-236B-A23B"
	DefaultTemperature = 0.7
)

// ConnectionSettings describe how to reach the provider
type ConnectionSettings struct {
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	APIKey      string  `json:"-" yaml:"-"` // Never serialize
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// DefaultSettings returns the built-in settings with no credential
func DefaultSettings() ConnectionSettings {
	return ConnectionSettings{
		Endpoint:    DefaultEndpoint,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
	}
}

// HasCredential reports whether a non-blank API key is present.
// A missing key selects the demo answer; it is not an error.
func (s ConnectionSettings) HasCredential() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Resolved trims every field, substitutes defaults for a blank endpoint or model
// and clamps the temperature.
func (s ConnectionSettings) Resolved() ConnectionSettings {
	out := ConnectionSettings{
		Endpoint:    strings.TrimSpace(s.Endpoint),
		APIKey:      strings.TrimSpace(s.APIKey),
		Model:       strings.TrimSpace(s.Model),
		Temperature: ClampTemperature(s.Temperature),
	}
	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	return out
}

// ClampTemperature bounds t to [0, 1]. NaN falls back to the default.
func ClampTemperature(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return DefaultTemperature
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// ParseTemperature reads a form value. Blank or unparseable input yields the default.
func ParseTemperature(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTemperature
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return DefaultTemperature
	}
	return ClampTemperature(t)
}

// MaskCredential renders a key for diagnostics: first and last four characters,
// "none" when absent. Keys too short to hide anything are fully starred.
func MaskCredential(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "none"
	}
	r := []rune(key)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + "..." + string(r[len(r)-4:])
}
