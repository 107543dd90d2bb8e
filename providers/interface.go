package providers

import (
	"encoding/json"
	"net/http"

	"promptlab/models"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body POSTed to the chat-completions endpoint
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse is the part of the provider reply we read
type ChatResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a response choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage tracks token usage
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RequestDescriptor is everything needed to issue one provider call.
// It is built fresh per submission and never reused.
type RequestDescriptor struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    ChatRequest
}

// RedactedHeaders returns the headers with the bearer credential masked
func (d *RequestDescriptor) RedactedHeaders() map[string]string {
	out := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			v = "Bearer " + models.MaskCredential(bearerToken(v))
		}
		out[k] = v
	}
	return out
}

// PrettyPayload renders the JSON body for the debug trace. The body never
// holds the credential, so it is safe to show.
func (d *RequestDescriptor) PrettyPayload() string {
	b, err := json.MarshalIndent(d.Body, "", "  ")
	if err != nil {
		return "<unprintable payload: " + err.Error() + ">"
	}
	return string(b)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) >= len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}
