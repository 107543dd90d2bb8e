package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// TraceEntry is one timestamped diagnostic line
type TraceEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Trace collects the verbose diagnostics shown when debug mode is on.
// All methods are safe on a nil *Trace, which records nothing.
type Trace struct {
	now     func() time.Time
	Entries []TraceEntry `json:"entries"`
}

func newTrace(now func() time.Time) *Trace {
	return &Trace{now: now}
}

// Addf appends a formatted line
func (t *Trace) Addf(format string, args ...any) {
	if t == nil {
		return
	}
	t.Entries = append(t.Entries, TraceEntry{
		At:      t.now(),
		Message: fmt.Sprintf(format, args...),
	})
}

// Lines returns the entries rendered as "[15:04:05.000] message"
func (t *Trace) Lines() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, "["+e.At.Format("15:04:05.000")+"] "+e.Message)
	}
	return out
}

func (t *Trace) String() string {
	return strings.Join(t.Lines(), "\n")
}
