package report

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "dailyprompt/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

type sqliteSink struct {
	db *sql.DB
}

func openSQLite(path string, busyTimeout time.Duration, log logx.Logger) (Sink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"}
	if busyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteSink{db: db}, nil
}

func (s *sqliteSink) Report(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_message(at, version, message, tag, participant, run_id) VALUES(?,?,?,?,?,?)`,
		r.At.UnixMilli(), nullStr(r.Version), r.Message, r.Tag, nullStr(r.Participant), nullStr(r.RunID),
	)
	return err
}

func (s *sqliteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ReadSQLite loads the newest n records of a sqlite report database, oldest
// first. n <= 0 reads everything; a non-empty participant filters before the
// limit applies.
func ReadSQLite(ctx context.Context, path, participant string, n int) ([]Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	s, err := openSQLite(path, 0, logx.Nop())
	if err != nil {
		return nil, err
	}
	defer s.Close()

	recs, err := s.(*sqliteSink).recent(ctx, participant, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// recent returns the newest n records, newest first.
func (s *sqliteSink) recent(ctx context.Context, participant string, n int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, COALESCE(version, ''), message, tag, COALESCE(participant, ''), COALESCE(run_id, '')
		 FROM log_message WHERE ? = '' OR participant = ? ORDER BY id DESC LIMIT ?`,
		participant, participant, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			ms int64
		)
		if err := rows.Scan(&ms, &r.Version, &r.Message, &r.Tag, &r.Participant, &r.RunID); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
