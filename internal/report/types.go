package report

import (
	"context"
	"errors"
	"time"
)

// DefaultTag is attached to records when Config.Tag is empty.
const DefaultTag = "DAILY:DSC"

var ErrClosed = errors.New("report sink closed")

// Record is one status message.
type Record struct {
	At          time.Time `json:"at"`
	Version     string    `json:"version"`
	Message     string    `json:"message"`
	Tag         string    `json:"tag"`
	Participant string    `json:"participant,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
}

// Sink receives records. Implementations must be safe for concurrent use.
type Sink interface {
	Report(ctx context.Context, r Record) error
	Close() error
}

// Config configures the report sinks.
//
// Drivers values: "log", "file", "sqlite", "none". Empty means "log".
type Config struct {
	Drivers     []string
	FilePath    string
	SQLitePath  string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Tag         string
}

func (c Config) tag() string {
	if c.Tag == "" {
		return DefaultTag
	}
	return c.Tag
}
