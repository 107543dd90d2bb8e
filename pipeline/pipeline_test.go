package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"promptlab/models"
	"promptlab/pipeline"
	"promptlab/providers"
)

// fakeSender returns a canned body or error and remembers what it was asked
type fakeSender struct {
	body  string
	err   error
	calls int
	last  *providers.RequestDescriptor
}

func (f *fakeSender) Send(ctx context.Context, req *providers.RequestDescriptor) ([]byte, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type captureRecorder struct {
	results []*pipeline.Result
}

func (c *captureRecorder) Record(ctx context.Context, sub pipeline.Submission, res *pipeline.Result) {
	c.results = append(c.results, res)
}

func newPipeline(s pipeline.Sender, opts ...pipeline.Option) *pipeline.Pipeline {
	base := []pipeline.Option{
		pipeline.WithTokenCounter(func(string) int { return 7 }),
		pipeline.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	return pipeline.New(s, append(base, opts...)...)
}

func withKey(key string) models.ConnectionSettings {
	s := models.DefaultSettings()
	s.APIKey = key
	return s
}

func TestEmptyPromptNeverCallsProvider(t *testing.T) {
	sender := &fakeSender{body: `{"choices":[{"message":{"content":"x"}}]}`}
	p := newPipeline(sender)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		res := p.Submit(context.Background(), pipeline.Submission{
			Mode:     models.ModeGeneral,
			Prompt:   prompt,
			Settings: withKey("flp_secretsecret"),
		})
		if res.Status != pipeline.StatusEmptyInput {
			t.Errorf("status = %q", res.Status)
		}
		if res.Outcome.Failure == nil || res.Outcome.Failure.Kind != models.KindEmptyInput {
			t.Errorf("outcome = %+v", res.Outcome)
		}
	}
	if sender.calls != 0 {
		t.Errorf("provider called %d times", sender.calls)
	}
}

func TestNoCredentialServesFallback(t *testing.T) {
	sender := &fakeSender{}
	p := newPipeline(sender)

	res := p.Submit(context.Background(), pipeline.Submission{
		Mode:     models.ModeSummary,
		Prompt:   strings.Repeat("X", 100),
		Settings: models.DefaultSettings(),
	})
	if sender.calls != 0 {
		t.Fatalf("provider called without credential")
	}
	if !res.Demo || res.Status != pipeline.StatusDemo || res.Kind() != "demo" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Answer, strings.Repeat("X", 40)+"...") {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestSuccess(t *testing.T) {
	sender := &fakeSender{body: `{"choices":[{"message":{"content":" hello "}}]}`}
	p := newPipeline(sender)

	settings := withKey("flp_abcdefgh12345678")
	settings.Temperature = 3
	res := p.Submit(context.Background(), pipeline.Submission{
		Mode:     models.ModeTranslation,
		Prompt:   "  안녕하세요  ",
		Option:   "formal",
		Settings: settings,
	})

	if res.Answer != "hello" || res.Status != pipeline.StatusSuccess || !res.Outcome.OK() {
		t.Fatalf("result = %+v", res)
	}
	if sender.calls != 1 {
		t.Fatalf("calls = %d", sender.calls)
	}
	body := sender.last.Body
	if body.Temperature != 1 {
		t.Errorf("temperature not clamped: %v", body.Temperature)
	}
	if !strings.HasSuffix(body.Messages[1].Content, "\n\n안녕하세요") {
		t.Errorf("prompt not trimmed: %q", body.Messages[1].Content)
	}
	if res.Trace != nil {
		t.Error("trace should be nil when debug is off")
	}
}

func TestFailuresAreClassified(t *testing.T) {
	cases := []struct {
		name   string
		sender *fakeSender
		kind   models.FailureKind
		status string
	}{
		{
			name:   "not found",
			sender: &fakeSender{err: &models.Failure{Kind: models.KindNotFound, Detail: "API error (404): nope", StatusCode: 404}},
			kind:   models.KindNotFound,
			status: providers.StatusNotFound,
		},
		{
			name:   "transport",
			sender: &fakeSender{err: models.Fail(models.KindNetworkOrCors, "dial tcp: connection refused")},
			kind:   models.KindNetworkOrCors,
			status: providers.StatusNetworkOrCors,
		},
		{
			name:   "unclassified fetch failure",
			sender: &fakeSender{err: errors.New("TypeError: Failed to fetch")},
			kind:   models.KindNetworkOrCors,
			status: providers.StatusNetworkOrCors,
		},
		{
			name:   "server error",
			sender: &fakeSender{err: &models.Failure{Kind: models.KindOther, Detail: "API error (500): boom", StatusCode: 500}},
			kind:   models.KindOther,
			status: "API error (500): boom",
		},
		{
			name:   "malformed",
			sender: &fakeSender{body: `{"id":"x"}`},
			kind:   models.KindMalformedPayload,
			status: providers.ErrNoContent,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := newPipeline(c.sender).Submit(context.Background(), pipeline.Submission{
				Mode:     models.ModeGeneral,
				Prompt:   "hi",
				Settings: withKey("flp_abcdefgh12345678"),
			})
			if res.Outcome.Failure == nil || res.Outcome.Failure.Kind != c.kind {
				t.Fatalf("outcome = %+v", res.Outcome)
			}
			if res.Status != c.status {
				t.Errorf("status = %q, want %q", res.Status, c.status)
			}
			if res.Answer != pipeline.AnswerFailed {
				t.Errorf("answer = %q", res.Answer)
			}
		})
	}
}

func TestDebugTraceMasksCredential(t *testing.T) {
	sender := &fakeSender{err: &models.Failure{Kind: models.KindOther, Detail: "API error (401): unauthorized", StatusCode: 401}}
	p := newPipeline(sender)

	res := p.Submit(context.Background(), pipeline.Submission{
		Mode:     models.ModeGeneral,
		Prompt:   "hi",
		Settings: withKey("flp_abcdefgh12345678"),
		Debug:    true,
	})

	trace := res.Trace.String()
	if strings.Contains(trace, "flp_abcdefgh12345678") {
		t.Fatalf("trace leaks credential:\n%s", trace)
	}
	for _, want := range []string{
		"api key=flp_...5678",
		"status code=401",
		"endpoint=" + models.DefaultEndpoint,
		"estimated prompt tokens=7",
		`"role": "system"`,
		"[03:04:05.000]",
	} {
		if !strings.Contains(trace, want) {
			t.Errorf("trace missing %q:\n%s", want, trace)
		}
	}
}

func TestRecorderSeesEveryResult(t *testing.T) {
	rec := &captureRecorder{}
	p := newPipeline(&fakeSender{body: `{"choices":[{"message":{"content":"ok"}}]}`}, pipeline.WithRecorder(rec))

	p.Submit(context.Background(), pipeline.Submission{Mode: models.ModeGeneral, Prompt: ""})
	p.Submit(context.Background(), pipeline.Submission{Mode: models.ModeGeneral, Prompt: "a"})
	p.Submit(context.Background(), pipeline.Submission{Mode: models.ModeGeneral, Prompt: "a", Settings: withKey("k")})

	if len(rec.results) != 3 {
		t.Fatalf("recorded %d results", len(rec.results))
	}
	kinds := []string{rec.results[0].Kind(), rec.results[1].Kind(), rec.results[2].Kind()}
	want := []string{"empty_input", "demo", "success"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("result %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestInvalidModeFallsBackToGeneral(t *testing.T) {
	res := newPipeline(&fakeSender{}).Submit(context.Background(), pipeline.Submission{Mode: "poetry", Prompt: "x"})
	if res.Mode != models.ModeGeneral {
		t.Errorf("mode = %q", res.Mode)
	}
}
