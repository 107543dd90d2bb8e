package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"promptlab/models"
	"promptlab/prompts"
	"promptlab/providers"
)

func TestComposeClampsTemperature(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{2, 1},
	}
	for _, c := range cases {
		desc := providers.Compose(models.ConnectionSettings{APIKey: "k", Temperature: c.in}, prompts.Pair{})
		if desc.Body.Temperature != c.want {
			t.Errorf("temperature %v -> %v, want %v", c.in, desc.Body.Temperature, c.want)
		}
	}
}

func TestComposeDefaultsAndOverrides(t *testing.T) {
	desc := providers.Compose(models.ConnectionSettings{Endpoint: "  ", Model: " ", APIKey: "secret"}, prompts.Pair{System: "s", User: "u"})
	if desc.URL != models.DefaultEndpoint {
		t.Errorf("url = %q, want default", desc.URL)
	}
	if desc.Body.Model != models.DefaultModel {
		t.Errorf("model = %q, want default", desc.Body.Model)
	}

	desc = providers.Compose(models.ConnectionSettings{Endpoint: " http://example.test/v1/chat/completions ", Model: " exaone-mini "}, prompts.Pair{})
	if desc.URL != "http://example.test/v1/chat/completions" || desc.Body.Model != "exaone-mini" {
		t.Errorf("trimmed overrides not used: %q %q", desc.URL, desc.Body.Model)
	}
}

func TestComposeMessagesAndHeaders(t *testing.T) {
	desc := providers.Compose(models.ConnectionSettings{APIKey: "flp_1234567890abcd"}, prompts.Pair{System: "sys", User: "usr"})

	if len(desc.Body.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(desc.Body.Messages))
	}
	if desc.Body.Messages[0] != (providers.Message{Role: "system", Content: "sys"}) {
		t.Errorf("first message = %+v", desc.Body.Messages[0])
	}
	if desc.Body.Messages[1] != (providers.Message{Role: "user", Content: "usr"}) {
		t.Errorf("second message = %+v", desc.Body.Messages[1])
	}
	if desc.Method != http.MethodPost {
		t.Errorf("method = %q", desc.Method)
	}
	if desc.Headers["Authorization"] != "Bearer flp_1234567890abcd" {
		t.Errorf("authorization = %q", desc.Headers["Authorization"])
	}

	redacted := desc.RedactedHeaders()
	if redacted["Authorization"] != "Bearer flp_...abcd" {
		t.Errorf("redacted authorization = %q", redacted["Authorization"])
	}
	if strings.Contains(desc.PrettyPayload(), "flp_1234567890abcd") {
		t.Error("payload must not contain the credential")
	}
}

func TestSendSuccess(t *testing.T) {
	var got providers.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key-123456" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":" hello "}}]}`)
	}))
	defer srv.Close()

	desc := providers.Compose(models.ConnectionSettings{Endpoint: srv.URL, APIKey: "test-key-123456", Model: "m", Temperature: 0.3}, prompts.Pair{System: "s", User: "u"})
	body, err := providers.NewClient(srv.Client()).Send(context.Background(), desc)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Model != "m" || got.Temperature != 0.3 || len(got.Messages) != 2 {
		t.Errorf("provider saw %+v", got)
	}

	text, err := providers.Interpret(body)
	if err != nil || text != "hello" {
		t.Errorf("Interpret = %q, %v", text, err)
	}
}

func TestSendStatusFailures(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   models.FailureKind
	}{
		{http.StatusNotFound, `{"error":"network error"}`, models.KindNotFound},
		{http.StatusUnauthorized, `{"error":"bad key"}`, models.KindOther},
		{http.StatusInternalServerError, "boom", models.KindOther},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			io.WriteString(w, c.body)
		}))

		desc := providers.Compose(models.ConnectionSettings{Endpoint: srv.URL, APIKey: "k"}, prompts.Pair{})
		_, err := providers.NewClient(nil).Send(context.Background(), desc)
		srv.Close()

		var f *models.Failure
		if !errors.As(err, &f) {
			t.Fatalf("status %d: expected *models.Failure, got %v", c.status, err)
		}
		if f.Kind != c.kind || f.StatusCode != c.status {
			t.Errorf("status %d: got kind %s status %d", c.status, f.Kind, f.StatusCode)
		}
		want := fmt.Sprintf("API error (%d): %s", c.status, c.body)
		if f.Detail != want {
			t.Errorf("detail = %q, want %q", f.Detail, want)
		}
	}
}

func TestSendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	desc := providers.Compose(models.ConnectionSettings{Endpoint: url, APIKey: "k"}, prompts.Pair{})
	_, err := providers.NewClient(nil).Send(context.Background(), desc)

	f := providers.Classify(err)
	if f == nil || f.Kind != models.KindNetworkOrCors {
		t.Fatalf("expected NetworkOrCors, got %+v", f)
	}
	if f.Detail == "" {
		t.Error("transport error message should be captured")
	}
	if providers.StatusLine(err) != providers.StatusNetworkOrCors {
		t.Errorf("status line = %q", providers.StatusLine(err))
	}
}

func TestInterpretMalformed(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"   "}}]}`,
		`{"choices":[{"message":{}}]}`,
		`not json`,
		`{"choices":[{"message":{"content":42}}]}`,
	}
	for _, p := range payloads {
		_, err := providers.Interpret([]byte(p))
		f := providers.Classify(err)
		if f == nil || f.Kind != models.KindMalformedPayload || f.Detail != providers.ErrNoContent {
			t.Errorf("Interpret(%s) = %+v", p, f)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind models.FailureKind
	}{
		{errors.New("TypeError: Failed to fetch"), models.KindNetworkOrCors},
		{errors.New("Network Error"), models.KindNetworkOrCors},
		{errors.New("network request failed"), models.KindNetworkOrCors},
		{fmt.Errorf("wrapped: %w", models.Fail(models.KindNotFound, "API error (404): x")), models.KindNotFound},
		{errors.New("something odd"), models.KindOther},
	}
	for _, c := range cases {
		if f := providers.Classify(c.err); f.Kind != c.kind {
			t.Errorf("Classify(%v) = %s, want %s", c.err, f.Kind, c.kind)
		}
	}
	if providers.Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestStatusLinePriority(t *testing.T) {
	notFound := &models.Failure{Kind: models.KindNotFound, Detail: "API error (404): failed to fetch", StatusCode: 404}
	if got := providers.StatusLine(notFound); got != providers.StatusNotFound {
		t.Errorf("404 status line = %q", got)
	}
	if got := providers.StatusLine(errors.New("Failed to fetch")); got != providers.StatusNetworkOrCors {
		t.Errorf("network status line = %q", got)
	}
	other := &models.Failure{Kind: models.KindOther, Detail: "API error (500): boom", StatusCode: 500}
	if got := providers.StatusLine(other); got != "API error (500): boom" {
		t.Errorf("other status line = %q", got)
	}
	if got := providers.StatusLine(models.Fail(models.KindMalformedPayload, providers.ErrNoContent)); got != providers.ErrNoContent {
		t.Errorf("malformed status line = %q", got)
	}
}
