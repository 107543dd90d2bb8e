package pipeline

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"promptlab/models"
	"promptlab/prompts"
	"promptlab/providers"
)

// User-facing text for the terminal states of a submission
const (
	StatusEmptyInput = "Please enter a prompt."
	StatusDemo       = "No API key set, showing a demo answer."
	StatusSuccess    = "Response received!"
	AnswerFailed     = "An error occurred. Please check your input."
)

// Sender issues one provider exchange; *providers.Client implements it
type Sender interface {
	Send(ctx context.Context, req *providers.RequestDescriptor) ([]byte, error)
}

// Recorder receives every finished submission, e.g. for auditing
type Recorder interface {
	Record(ctx context.Context, sub Submission, res *Result)
}

// Submission is the form state captured when the user submits
type Submission struct {
	Mode     models.Mode
	Prompt   string
	Option   string
	Settings models.ConnectionSettings
	Debug    bool
}

// Result is everything an adapter needs to render a submission
type Result struct {
	RequestID string
	Mode      models.Mode
	Answer    string
	Status    string
	Outcome   models.Outcome
	Demo      bool
	Trace     *Trace

	// Endpoint and Model are the resolved values actually used
	Endpoint     string
	Model        string
	InputLength  int
	OutputLength int

	StartedAt time.Time
	Duration  time.Duration
}

// Kind is "demo", "success" or the failure kind
func (r *Result) Kind() string {
	if r.Demo {
		return "demo"
	}
	return r.Outcome.Label()
}

// Pipeline turns a submission into a rendered result
type Pipeline struct {
	sender   Sender
	recorder Recorder
	tokens   func(string) int // nil uses EstimateTokens
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRecorder hands every result to r
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithTokenCounter replaces the tiktoken estimate shown in the trace
func WithTokenCounter(fn func(string) int) Option {
	return func(p *Pipeline) { p.tokens = fn }
}

func (p *Pipeline) countTokens(ctx context.Context, text string) int {
	if p.tokens != nil {
		return p.tokens(text)
	}
	return EstimateTokens(ctx, text)
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline that reaches the provider through sender
func New(sender Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		sender: sender,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs one submission to completion. It never returns an error: every
// failure is folded into the Result so the form stays usable.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) *Result {
	started := p.now()
	res := &Result{
		RequestID: uuid.NewString(),
		Mode:      sub.Mode,
		StartedAt: started,
	}
	if sub.Debug {
		res.Trace = newTrace(p.now)
	}
	defer p.finish(ctx, sub, res)

	mode := sub.Mode
	if !mode.Valid() {
		mode = models.ModeGeneral
		res.Mode = mode
	}

	prompt := strings.TrimSpace(sub.Prompt)
	if prompt == "" {
		res.Outcome = models.Failed(models.Fail(models.KindEmptyInput, "prompt is empty"))
		res.Status = StatusEmptyInput
		res.Trace.Addf("rejected before any request: empty prompt")
		return res
	}

	settings := sub.Settings.Resolved()
	res.Endpoint = settings.Endpoint
	res.Model = settings.Model
	res.InputLength = utf8.RuneCountInString(prompt)

	res.Trace.Addf("request started at %s", started.Format(time.RFC3339Nano))
	res.Trace.Addf("mode=%s option=%q", mode, optionOrDefault(sub.Option))
	res.Trace.Addf("endpoint=%s model=%s temperature=%.2f", settings.Endpoint, settings.Model, settings.Temperature)
	res.Trace.Addf("api key=%s", models.MaskCredential(settings.APIKey))
	res.Trace.Addf("prompt length=%d chars", res.InputLength)

	if !settings.HasCredential() {
		res.Demo = true
		res.Answer = prompts.Fallback(mode, prompt)
		res.Outcome = models.Success(res.Answer)
		res.Status = StatusDemo
		res.OutputLength = utf8.RuneCountInString(res.Answer)
		res.Trace.Addf("no api key: served demo answer (%d chars)", res.OutputLength)
		return res
	}

	pair := prompts.Build(mode, prompt, sub.Option)
	desc := providers.Compose(settings, pair)
	if res.Trace != nil {
		res.Trace.Addf("estimated prompt tokens=%d", p.countTokens(ctx, pair.System+"\n"+pair.User))
	}

	body, err := p.sender.Send(ctx, desc)
	var text string
	if err == nil {
		text, err = providers.Interpret(body)
	}
	elapsed := p.now().Sub(started)

	if err != nil {
		f := providers.Classify(err)
		res.Outcome = models.Failed(f)
		res.Answer = AnswerFailed
		res.Status = providers.StatusLine(f)

		res.Trace.Addf("failed after %s: kind=%s", elapsed, f.Kind)
		if f.StatusCode != 0 {
			res.Trace.Addf("status code=%d", f.StatusCode)
		}
		res.Trace.Addf("endpoint=%s", desc.URL)
		res.Trace.Addf("request headers=%v", desc.RedactedHeaders())
		res.Trace.Addf("error=%s", f.Detail)
		res.Trace.Addf("request payload:\n%s", desc.PrettyPayload())
		return res
	}

	res.Answer = text
	res.Outcome = models.Success(text)
	res.Status = StatusSuccess
	res.OutputLength = utf8.RuneCountInString(text)
	res.Trace.Addf("response received after %s: body=%d bytes answer=%d chars", elapsed, len(body), res.OutputLength)
	return res
}

func (p *Pipeline) finish(ctx context.Context, sub Submission, res *Result) {
	res.Duration = p.now().Sub(res.StartedAt)

	log.Printf("[PIPELINE] request=%s mode=%s outcome=%s duration=%s",
		res.RequestID, res.Mode, res.Kind(), res.Duration)

	if p.recorder != nil {
		p.recorder.Record(ctx, sub, res)
	}
}

func optionOrDefault(option string) string {
	if strings.TrimSpace(option) == "" {
		return prompts.DefaultOption
	}
	return option
}
