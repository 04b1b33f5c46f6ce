package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/osse101/riddlegroup/internal/logger"
)

// DeadLetterSchemaVersion tags each line so older files stay readable after the entry changes
const DeadLetterSchemaVersion = "1.0"

// DeadLetterEntry is one undeliverable event, stored as a single JSON line
type DeadLetterEntry struct {
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	Event         Event     `json:"event"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
}

// DeadLetterWriter appends entries to a JSON-lines sink. Safe for concurrent use.
type DeadLetterWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
	now func() time.Time
}

// NewDeadLetterWriter opens path for appending, creating it if needed
func NewDeadLetterWriter(path string) (*DeadLetterWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, DeadLetterFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter file: %w", err)
	}
	return newDeadLetterWriter(f, time.Now), nil
}

func newDeadLetterWriter(out io.WriteCloser, now func() time.Time) *DeadLetterWriter {
	return &DeadLetterWriter{out: out, enc: json.NewEncoder(out), now: now}
}

// Write records evt after attempts failed deliveries
func (d *DeadLetterWriter) Write(evt Event, attempts int, lastErr error) error {
	entry := DeadLetterEntry{
		SchemaVersion: DeadLetterSchemaVersion,
		Event:         evt,
		Attempts:      attempts,
	}
	if lastErr != nil {
		entry.LastError = lastErr.Error()
	}

	logger.Warn(LogMsgEventDeadLettered,
		"event_type", evt.Type,
		"event_id", evt.ID,
		"attempts", attempts,
		"error", entry.LastError)

	d.mu.Lock()
	defer d.mu.Unlock()
	entry.Timestamp = d.now().UTC()
	return d.enc.Encode(entry)
}

func (d *DeadLetterWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Close()
}

// ReadDeadLetters decodes every entry in r, in file order
func ReadDeadLetters(r io.Reader) ([]DeadLetterEntry, error) {
	dec := json.NewDecoder(r)
	var entries []DeadLetterEntry
	for {
		var e DeadLetterEntry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("dead-letter entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
}
