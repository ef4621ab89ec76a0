package main

import (
	"context"
	"os"
	"strings"

	"dailyprompt/internal/prompter"
	"dailyprompt/internal/supervisor"
	logx "dailyprompt/pkg/logx"
)

// logStatus writes one line per participant and one per background loop.
func logStatus(log logx.Logger, svc *prompter.Service, sup *supervisor.Supervisor) {
	snap := svc.Snapshot()
	log.Info("status",
		logx.Bool("running", snap.Running),
		logx.Duration("interval", snap.Interval),
		logx.String("tz", snap.Timezone),
		logx.String("run_id", snap.RunID),
		logx.Int64("sink_errors", int64(svc.SinkErrors())),
	)
	for _, p := range snap.Participants {
		pending := make([]string, len(p.Pending))
		for i, at := range p.Pending {
			pending[i] = at.Format("15:04:05")
		}
		log.Info("status participant",
			logx.String("participant", p.ID),
			logx.Bool("initialized", p.Initialized),
			logx.String("pending", strings.Join(pending, ",")),
			logx.Int64("polls", int64(p.Polls)),
			logx.Int64("fired", int64(p.Fired)),
			logx.Int64("missed", int64(p.Missed)),
			logx.String("last", p.LastMessage),
		)
	}
	if sup == nil {
		return
	}
	for _, l := range sup.Snapshot() {
		log.Info("status loop",
			logx.String("loop", l.Name),
			logx.Bool("running", l.Running),
			logx.Int("restarts", l.Restarts),
			logx.Int("panics", l.Panics),
			logx.String("last_err", l.LastErr),
		)
	}
}

// statusOnSignal calls dump for every signal received until ctx is done.
func statusOnSignal(ctx context.Context, sig <-chan os.Signal, dump func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sig:
			dump()
		}
	}
}
