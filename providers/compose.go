package providers

import (
	"net/http"

	"promptlab/models"
	"promptlab/prompts"
)

// Compose turns connection settings and a message pair into a request descriptor.
// The endpoint is used as-is: it must already be the complete chat-completions URL.
func Compose(settings models.ConnectionSettings, pair prompts.Pair) *RequestDescriptor {
	s := settings.Resolved()

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if s.APIKey != "" {
		headers["Authorization"] = "Bearer " + s.APIKey
	}

	return &RequestDescriptor{
		URL:     s.Endpoint,
		Method:  http.MethodPost,
		Headers: headers,
		Body: ChatRequest{
			Model: s.Model,
			Messages: []Message{
				{Role: "system", Content: pair.System},
				{Role: "user", Content: pair.User},
			},
			Temperature: s.Temperature,
		},
	}
}
