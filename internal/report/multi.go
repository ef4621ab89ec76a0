package report

import (
	"context"
	"errors"
	"sync"
	"time"

	logx "dailyprompt/pkg/logx"
)

const forwardTagSuffix = ":LOG"

// Multi fans a record out to every sink and joins their errors.
type Multi struct {
	tag string

	mu     sync.RWMutex
	sinks  []Sink
	closed bool
}

// NewMulti combines sinks. Records without a tag get tag.
func NewMulti(tag string, sinks ...Sink) *Multi {
	if tag == "" {
		tag = DefaultTag
	}
	return &Multi{tag: tag, sinks: sinks}
}

func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

func (m *Multi) Report(ctx context.Context, r Record) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	if r.Tag == "" {
		r.Tag = m.tag
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forward implements logx.Forwarder so warnings can be copied into the sinks.
func (m *Multi) Forward(ctx context.Context, _ logx.Level, line string) error {
	return m.Report(ctx, Record{Message: line, Tag: m.tag + forwardTagSuffix})
}

func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.sinks = nil
	return errors.Join(errs...)
}
