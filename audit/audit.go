package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"promptlab/pipeline"
)

// DefaultLimit bounds Recent when the caller asks for nothing or too much
const DefaultLimit = 50

const maxLimit = 500

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	mode TEXT NOT NULL,
	model TEXT,
	endpoint_host TEXT,
	outcome TEXT NOT NULL,
	status_code INTEGER,
	demo BOOLEAN NOT NULL DEFAULT 0,
	input_signature TEXT,
	input_length INTEGER,
	output_length INTEGER,
	duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_submissions_timestamp ON submissions(timestamp);
CREATE INDEX IF NOT EXISTS idx_submissions_outcome ON submissions(outcome);
`

// Entry is one audited submission. Prompts and credentials are never stored,
// only a short signature of the prompt.
type Entry struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Mode           string    `json:"mode"`
	Model          string    `json:"model"`
	EndpointHost   string    `json:"endpoint_host"`
	Outcome        string    `json:"outcome"`
	StatusCode     int       `json:"status_code,omitempty"`
	Demo           bool      `json:"demo"`
	InputSignature string    `json:"input_signature"`
	InputLength    int       `json:"input_length"`
	OutputLength   int       `json:"output_length"`
	DurationMS     int64     `json:"duration_ms"`
}

// Log writes submissions to a sqlite3 database
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	log.Printf("[AUDIT] submission audit database initialized at %s", path)
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Record implements pipeline.Recorder. Failures are logged, never surfaced.
func (l *Log) Record(ctx context.Context, sub pipeline.Submission, res *pipeline.Result) {
	e := entryFor(sub, res)

	// the request context may already be cancelled once the answer is rendered
	ctx = context.WithoutCancel(ctx)
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO submissions (
			request_id, timestamp, mode, model, endpoint_host, outcome, status_code,
			demo, input_signature, input_length, output_length, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RequestID, e.Timestamp, e.Mode, e.Model, e.EndpointHost, e.Outcome, e.StatusCode,
		e.Demo, e.InputSignature, e.InputLength, e.OutputLength, e.DurationMS)
	if err != nil {
		log.Printf("[AUDIT] Failed to record submission %s: %v", e.RequestID, err)
		return
	}

	id, _ := result.LastInsertId()
	log.Printf("[AUDIT] Logged submission ID=%d request=%s mode=%s outcome=%s", id, e.RequestID, e.Mode, e.Outcome)
}

// Recent returns the newest entries first
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > maxLimit {
		limit = DefaultLimit
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, timestamp, mode, model, endpoint_host, outcome, status_code,
		       demo, input_signature, input_length, output_length, duration_ms
		FROM submissions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.RequestID, &e.Timestamp, &e.Mode, &e.Model, &e.EndpointHost,
			&e.Outcome, &e.StatusCode, &e.Demo, &e.InputSignature,
			&e.InputLength, &e.OutputLength, &e.DurationMS,
		)
		if err != nil {
			log.Printf("[AUDIT] Error scanning row: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func entryFor(sub pipeline.Submission, res *pipeline.Result) Entry {
	e := Entry{
		RequestID:      res.RequestID,
		Timestamp:      res.StartedAt.UTC(),
		Mode:           string(res.Mode),
		Model:          res.Model,
		EndpointHost:   hostOf(res.Endpoint),
		Outcome:        res.Kind(),
		Demo:           res.Demo,
		InputSignature: Signature(sub.Prompt),
		InputLength:    res.InputLength,
		OutputLength:   res.OutputLength,
		DurationMS:     res.Duration.Milliseconds(),
	}
	if f := res.Outcome.Failure; f != nil {
		e.StatusCode = f.StatusCode
	}
	return e
}

// Signature is a short, stable fingerprint of a prompt
func Signature(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:16]
}

func hostOf(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}
