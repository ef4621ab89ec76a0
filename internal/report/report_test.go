package report

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "dailyprompt/pkg/logx"

	"github.com/stretchr/testify/require"
)

type memSink struct {
	recs   []Record
	err    error
	closed bool
}

func (m *memSink) Report(ctx context.Context, r Record) error {
	m.recs = append(m.recs, r)
	return m.err
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestMultiFillsDefaults(t *testing.T) {
	a := &memSink{}
	m := NewMulti("", a)

	require.NoError(t, m.Report(context.Background(), Record{Message: "hello"}))
	require.Len(t, a.recs, 1)
	require.Equal(t, DefaultTag, a.recs[0].Tag)
	require.False(t, a.recs[0].At.IsZero())
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &memSink{err: boom}
	b := &memSink{}
	m := NewMulti("T", a, b)

	err := m.Report(context.Background(), Record{Message: "x"})
	require.ErrorIs(t, err, boom)
	require.Len(t, b.recs, 1, "a failing sink must not stop the others")
}

func TestMultiClose(t *testing.T) {
	a := &memSink{}
	m := NewMulti("T", a)
	require.NoError(t, m.Close())
	require.True(t, a.closed)
	require.ErrorIs(t, m.Report(context.Background(), Record{Message: "late"}), ErrClosed)
	require.NoError(t, m.Close())
}

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "report.jsonl")
	m, err := Open(Config{Drivers: []string{"file"}, FilePath: path, Tag: "TEST"}, logx.Nop())
	require.NoError(t, err)

	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, m.Report(context.Background(), Record{At: at, Version: "1.2.3", Message: "Prompting now for 2024-03-14 08:00:00", Participant: "p1"}))
	require.NoError(t, m.Report(context.Background(), Record{At: at.Add(5 * time.Minute), Message: "Not the time to prompt."}))
	require.NoError(t, m.Close())

	recs, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "TEST", recs[0].Tag)
	require.Equal(t, "1.2.3", recs[0].Version)
	require.Equal(t, "p1", recs[0].Participant)
	require.True(t, recs[0].At.Equal(at))
	require.Equal(t, "Not the time to prompt.", recs[1].Message)
}

func TestSQLiteSinkInserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.db")
	s, err := openSQLite(path, time.Second, logx.Nop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Report(ctx, Record{At: at, Message: "first", Tag: DefaultTag}))
	require.NoError(t, s.Report(ctx, Record{At: at.Add(time.Minute), Message: "second", Tag: DefaultTag, Participant: "p2", RunID: "r"}))

	recs, err := s.(*sqliteSink).recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "second", recs[0].Message)
	require.Equal(t, "p2", recs[0].Participant)
	require.Equal(t, "", recs[1].Participant)
	require.Equal(t, at.UnixMilli(), recs[1].At.UnixMilli())
}

func TestReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.db")
	s, err := openSQLite(path, time.Second, logx.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	for i, p := range []string{"a", "b", "a", "a"} {
		require.NoError(t, s.Report(ctx, Record{At: at.Add(time.Duration(i) * time.Minute), Message: string(rune('0' + i)), Tag: DefaultTag, Participant: p}))
	}
	require.NoError(t, s.Close())

	recs, err := ReadSQLite(ctx, path, "a", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "2", recs[0].Message)
	require.Equal(t, "3", recs[1].Message)

	recs, err = ReadSQLite(ctx, path, "", 0)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	require.Equal(t, "0", recs[0].Message)

	_, err = ReadSQLite(ctx, filepath.Join(t.TempDir(), "missing.db"), "", 0)
	require.Error(t, err)
}

func TestOpenDrivers(t *testing.T) {
	m, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, m.Len(), "empty driver list opens the log driver")

	m, err = Open(Config{Drivers: []string{"none"}}, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())
	require.NoError(t, m.Report(context.Background(), Record{Message: "dropped"}))

	_, err = Open(Config{Drivers: []string{"kafka"}}, logx.Nop())
	require.Error(t, err)

	_, err = Open(Config{Drivers: []string{"file"}}, logx.Nop())
	require.Error(t, err, "file driver needs a path")
}

func TestLogSinkSkipsForwardedLines(t *testing.T) {
	var buf bytes.Buffer
	m := NewMulti("T", NewLogSink(logx.NewWriter(&buf, "debug")))

	require.NoError(t, m.Report(context.Background(), Record{Message: "visible"}))
	require.NoError(t, m.Forward(context.Background(), logx.LevelWarn, "[WARN] already logged"))

	out := buf.String()
	require.True(t, strings.Contains(out, "visible"))
	require.False(t, strings.Contains(out, "already logged"))
}
