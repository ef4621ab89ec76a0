package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailyprompt/internal/prompter"
	"dailyprompt/internal/report"
	"dailyprompt/internal/supervisor"
	"dailyprompt/internal/trigger"
	logx "dailyprompt/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promptd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestPreviewPrintsBlocks(t *testing.T) {
	path := writeConfig(t, "schedule:\n  blocks: 3\n  window_start_hour: 8\n  window_end_hour: 20\n  min_spacing: 2h\n  timezone: UTC\n")

	out := execute(t, "preview", "--config", path, "--day", "2024-03-14", "--days", "2", "--seed", "42")
	require.Contains(t, out, "block length 4h0m0s")
	require.Contains(t, out, "2024-03-14 Thu")
	require.Contains(t, out, "2024-03-15 Fri")
	require.Contains(t, out, "block 0  [08:00:00, 12:00:00)")
	require.Contains(t, out, "block 2  [16:00:00, 20:00:00)")

	// Same seed, same draw.
	again := execute(t, "preview", "--config", path, "--day", "2024-03-14", "--days", "2", "--seed", "42")
	require.Equal(t, out, again)
}

func TestHistoryFiltersAndLimits(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.jsonl")
	m, err := report.Open(report.Config{Drivers: []string{"file"}, FilePath: reportPath}, logx.Nop())
	require.NoError(t, err)

	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "one", Participant: "a"}))
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "two", Participant: "b"}))
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "three", Participant: "a"}))
	require.NoError(t, m.Close())

	path := writeConfig(t, "report:\n  drivers: [file]\n  file_path: "+reportPath+"\n")
	out := execute(t, "history", "--config", path, "--participant", "a", "--limit", "1")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "three")
}

func TestHistoryReadsSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "report.db")
	m, err := report.Open(report.Config{Drivers: []string{"sqlite"}, SQLitePath: dbPath}, logx.Nop())
	require.NoError(t, err)

	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "one", Participant: "a"}))
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "two", Participant: "b"}))
	require.NoError(t, m.Report(ctx, report.Record{At: at, Message: "three", Participant: "a"}))
	require.NoError(t, m.Close())

	path := writeConfig(t, "report:\n  drivers: [sqlite]\n  sqlite_path: "+dbPath+"\n")
	out := execute(t, "history", "--config", path, "--participant", "a", "--limit", "0")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "one")
	require.Contains(t, lines[1], "three")
}

func TestLogStatus(t *testing.T) {
	svc, err := prompter.New(prompter.Config{
		Trigger: trigger.Config{
			Blocks: 3, WindowStart: 8, WindowEnd: 20, MinSpacing: 2 * time.Hour, Location: time.UTC,
		},
		Participants: []string{"a"},
	}, nil, nil, logx.Nop())
	require.NoError(t, err)
	svc.Initialize(context.Background(), time.Date(2024, time.March, 14, 7, 0, 0, 0, time.UTC))

	sup := supervisor.New(context.Background())
	sup.GoRestart("idle", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, supervisor.DefaultRestartPolicy)
	defer func() { _ = sup.Stop(context.Background()) }()

	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "info")
	sig := make(chan os.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- statusOnSignal(ctx, sig, func() {
			logStatus(log, svc, sup)
			cancel()
		})
	}()
	sig <- syscall.SIGUSR1
	require.ErrorIs(t, <-done, context.Canceled)

	out := buf.String()
	require.Contains(t, out, `"participant":"a"`)
	require.Contains(t, out, `"initialized":true`)
	require.Contains(t, out, `"loop":"idle"`)
	require.Contains(t, out, `"sink_errors":0`)
}
