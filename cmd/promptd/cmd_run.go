package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dailyprompt/internal/config"
	"dailyprompt/internal/eventbus"
	"dailyprompt/internal/prompter"
	"dailyprompt/internal/report"
	"dailyprompt/internal/supervisor"
	"dailyprompt/internal/version"
	logx "dailyprompt/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until interrupted",
	Long: `Run the prompt scheduler.

Every participant gets its own daily trigger set. The scheduler polls on a
fixed interval and fires at most one prompt per participant per poll. Edits to
the config file are picked up without a restart.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cm, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs, log := logx.New(cfg.Logging.Logx())
	defer logs.Close()
	cm.SetLogger(log.With(logx.String("component", "config")))

	rc, err := cfg.Report.Report()
	if err != nil {
		return err
	}
	sink, err := report.Open(rc, log)
	if err != nil {
		return fmt.Errorf("open report sinks: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("report close failed", logx.Err(err))
		}
	}()
	logs.SetForwarder(sink)

	pc, err := promptConfig(cfg)
	if err != nil {
		return err
	}

	ver := version.Lookup()
	runID := uuid.NewString()
	bus := eventbus.New()

	svc, err := prompter.New(pc, sink, bus, log,
		prompter.WithVersion(ver),
		prompter.WithRunID(runID),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("component", "supervisor"))))

	events, unsub := bus.Subscribe(64)
	defer unsub()
	sup.GoRestart("prompt.deliver", func(ctx context.Context) error {
		return deliver(ctx, events, log)
	}, supervisor.DefaultRestartPolicy)

	updates := cm.Subscribe(1)
	defer cm.Unsubscribe(updates)
	sup.GoRestart("config.watch", cm.Watch, supervisor.DefaultRestartPolicy)
	sup.GoRestart("config.apply", func(ctx context.Context) error {
		return applyUpdates(ctx, updates, logs, svc, log)
	}, supervisor.DefaultRestartPolicy)

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	sup.GoRestart("status.signal", func(ctx context.Context) error {
		return statusOnSignal(ctx, usr1, func() { logStatus(log, svc, sup) })
	}, supervisor.DefaultRestartPolicy)

	// Polls report under a context the service detaches from this one and
	// cancels in Stop, so shutdown does not cut off an in-flight report.
	if err := svc.Start(sup.Context()); err != nil {
		_ = sup.Stop(context.Background())
		return err
	}
	log.Info("promptd started",
		logx.String("version", ver),
		logx.String("run_id", runID),
		logx.String("config", cm.Path()),
		logx.Int("report_sinks", sink.Len()),
	)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify ready sent")
	}

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	svc.Stop(stopCtx)
	if err := sup.Stop(stopCtx); err != nil {
		log.Warn("background loops did not stop cleanly", logx.Err(err))
	}
	logStatus(log, svc, sup)
	log.Info("promptd stopped")
	return nil
}

// deliver hands fired prompts to the delivery channel. Delivery itself is out
// of scope here; the prompt is logged so an operator or log shipper can act on it.
func deliver(ctx context.Context, events <-chan eventbus.Event, log logx.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := e.Data.(type) {
			case prompter.FiredEvent:
				log.Info("prompt due",
					logx.String("participant", ev.Participant),
					logx.Int("survey_id", ev.SurveyID),
					logx.Time("scheduled", ev.At),
				)
			case prompter.GeneratedEvent:
				log.Debug("schedule ready",
					logx.String("participant", ev.Participant),
					logx.Time("day", ev.Day),
					logx.Int("pending", len(ev.Times)),
				)
			}
		}
	}
}

func applyUpdates(ctx context.Context, updates <-chan *config.Config, logs *logx.Service, svc *prompter.Service, log logx.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			if cfg == nil {
				continue
			}
			logs.Apply(cfg.Logging.Logx())
			pc, err := promptConfig(cfg)
			if err != nil {
				log.Warn("schedule config rejected", logx.Err(err))
				continue
			}
			if err := svc.Apply(ctx, pc); err != nil {
				log.Warn("schedule apply failed", logx.Err(err))
			}
		}
	}
}
