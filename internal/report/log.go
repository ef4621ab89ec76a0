package report

import (
	"context"
	"strings"

	logx "dailyprompt/pkg/logx"
)

type logSink struct {
	log logx.Logger
}

// NewLogSink writes records to log at info level.
func NewLogSink(log logx.Logger) Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &logSink{log: log.With(logx.String("component", "report"))}
}

func (s *logSink) Report(ctx context.Context, r Record) error {
	_ = ctx
	// Forwarded log lines are already in the log.
	if strings.HasSuffix(r.Tag, forwardTagSuffix) {
		return nil
	}
	fields := []logx.Field{logx.String("tag", r.Tag), logx.String("version", r.Version)}
	if r.Participant != "" {
		fields = append(fields, logx.String("participant", r.Participant))
	}
	s.log.Info(r.Message, fields...)
	return nil
}

func (s *logSink) Close() error { return nil }
