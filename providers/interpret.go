package providers

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"promptlab/models"
)

// ErrNoContent is the detail reported when a success payload holds no answer
const ErrNoContent = "no message content found"

// Status lines for the classified failures that get guidance instead of the raw message
const (
	StatusNotFound      = "The endpoint returned 404. Check the API path (for example https://api.friendli.ai/v1/chat/completions)."
	StatusNetworkOrCors = "Network or CORS error. Check your connection and that the endpoint accepts requests from this origin."
)

// networkPatterns are matched case-insensitively against unclassified error messages
var networkPatterns = []string{
	"failed to fetch",
	"network error",
	"network request failed",
}

// Interpret extracts the trimmed answer from a success payload. Any parse fault or
// missing content is normalized to a MalformedPayload failure.
func Interpret(body []byte) (string, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", models.Fail(models.KindMalformedPayload, ErrNoContent)
	}
	if len(resp.Choices) == 0 {
		return "", models.Fail(models.KindMalformedPayload, ErrNoContent)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", models.Fail(models.KindMalformedPayload, ErrNoContent)
	}
	return text, nil
}

// Classify maps any error onto a Failure. Failures pass through untouched;
// transport errors and messages matching a network pattern become NetworkOrCors.
func Classify(err error) *models.Failure {
	if err == nil {
		return nil
	}

	var f *models.Failure
	if errors.As(err, &f) {
		return f
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || matchesNetworkPattern(err.Error()) {
		return models.Fail(models.KindNetworkOrCors, err.Error())
	}

	return models.Fail(models.KindOther, err.Error())
}

// StatusLine is the short status text for a failed submission, in priority order:
// not found, network or CORS, then the raw message verbatim.
func StatusLine(err error) string {
	f := Classify(err)
	if f == nil {
		return ""
	}

	switch f.Kind {
	case models.KindNotFound:
		return StatusNotFound
	case models.KindNetworkOrCors:
		return StatusNetworkOrCors
	}
	return f.Detail
}

func matchesNetworkPattern(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
