package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"promptlab/models"
)

// Client sends chat-completion requests to an OpenAI-compatible endpoint
type Client struct {
	client *http.Client
}

// NewClient creates a client. A nil http.Client gets a plain one with no timeout:
// cancellation comes only from the caller's context.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{client: hc}
}

// Send issues one POST and returns the raw success body.
// Errors are always *models.Failure: NotFound for 404, Other for any other
// non-2xx status, NetworkOrCors when no response was obtained at all.
func (c *Client) Send(ctx context.Context, req *RequestDescriptor) ([]byte, error) {
	jsonBody, err := json.Marshal(req.Body)
	if err != nil {
		return nil, models.Fail(models.KindOther, fmt.Sprintf("failed to marshal request body: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, models.Fail(models.KindOther, fmt.Sprintf("failed to create request: %v", err))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, models.Fail(models.KindNetworkOrCors, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.Fail(models.KindNetworkOrCors, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := models.KindOther
		if resp.StatusCode == http.StatusNotFound {
			kind = models.KindNotFound
		}
		return nil, &models.Failure{
			Kind:       kind,
			Detail:     fmt.Sprintf("API error (%d): %s", resp.StatusCode, string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	return body, nil
}
