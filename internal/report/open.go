package report

import (
	"fmt"
	"strings"

	logx "dailyprompt/pkg/logx"
)

// Open initializes the configured sinks and returns them behind one Multi.
// An empty driver list opens the "log" driver; "none" disables reporting.
func Open(cfg Config, log logx.Logger) (*Multi, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	drivers := cfg.Drivers
	if len(drivers) == 0 {
		drivers = []string{"log"}
	}

	m := &Multi{tag: cfg.tag()}
	seen := map[string]bool{}
	for _, raw := range drivers {
		driver := strings.ToLower(strings.TrimSpace(raw))
		if driver == "" || seen[driver] {
			continue
		}
		seen[driver] = true

		var (
			s   Sink
			err error
		)
		switch driver {
		case "none":
			continue
		case "log":
			s = NewLogSink(log)
		case "file":
			s, err = openFile(cfg.FilePath)
		case "sqlite", "sqlite3":
			s, err = openSQLite(cfg.SQLitePath, cfg.BusyTimeout, log)
		default:
			err = fmt.Errorf("unknown report driver: %s", driver)
		}
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("report.%s: %w", driver, err)
		}
		m.sinks = append(m.sinks, s)
	}
	return m, nil
}
