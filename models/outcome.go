package models

// FailureKind classifies why a submission did not produce an answer
type FailureKind string

const (
	KindEmptyInput       FailureKind = "empty_input"
	KindNotFound         FailureKind = "not_found"
	KindNetworkOrCors    FailureKind = "network_or_cors"
	KindMalformedPayload FailureKind = "malformed_payload"
	KindOther            FailureKind = "other"
)

// Failure is the single error shape the UI renders, whatever layer it came from
type Failure struct {
	Kind   FailureKind
	Detail string

	// StatusCode is the HTTP status when one was obtained, 0 otherwise
	StatusCode int
}

// Fail builds a Failure without a status code
func Fail(kind FailureKind, detail string) *Failure {
	return &Failure{Kind: kind, Detail: detail}
}

func (f *Failure) Error() string {
	return f.Detail
}

// Outcome is the tagged result of one submission: Text on success, Failure otherwise
type Outcome struct {
	Text    string
	Failure *Failure
}

// Success wraps answer text
func Success(text string) Outcome {
	return Outcome{Text: text}
}

// Failed wraps a failure
func Failed(f *Failure) Outcome {
	return Outcome{Failure: f}
}

// OK reports whether the outcome carries an answer
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Label is "success" or the failure kind, used in logs and API responses
func (o Outcome) Label() string {
	if o.Failure == nil {
		return "success"
	}
	return string(o.Failure.Kind)
}
