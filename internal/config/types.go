package config

import (
	"strings"
	"time"

	"dailyprompt/internal/report"
	"dailyprompt/internal/trigger"
	logx "dailyprompt/pkg/logx"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Report   ReportConfig   `json:"report"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Forward LoggingForward `json:"forward"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingForward copies log lines at or above min_level into the report sinks.
type LoggingForward struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ScheduleConfig describes the daily prompt window.
//
// All durations are Go duration strings (e.g. "2h", "5m").
//
// Defaults (when fields are omitted/zero):
//   - blocks: 3
//   - window_start_hour: 8, window_end_hour: 20 (only when both are zero)
//   - min_spacing: "0s"
//   - survey_id: 1 (0 is reserved for this default; negative ids are rejected)
//   - poll_interval: "5m"
//   - timezone: local
//   - participants: ["default"]
type ScheduleConfig struct {
	Blocks          int      `json:"blocks"`
	WindowStartHour int      `json:"window_start_hour"`
	WindowEndHour   int      `json:"window_end_hour"`
	MinSpacing      string   `json:"min_spacing"`
	SurveyID        int      `json:"survey_id,omitempty"`
	PollInterval    string   `json:"poll_interval,omitempty"`
	Timezone        string   `json:"timezone,omitempty"` // IANA TZ, e.g. "America/Toronto"
	Participants    []string `json:"participants,omitempty"`
}

// ReportConfig selects the report sinks.
//
// Example:
//
//	"report": { "drivers": ["log", "sqlite"], "sqlite_path": "./data/report.db" }
type ReportConfig struct {
	Drivers     []string `json:"drivers"`
	FilePath    string   `json:"file_path,omitempty"`
	SQLitePath  string   `json:"sqlite_path,omitempty"`
	BusyTimeout string   `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Tag         string   `json:"tag,omitempty"`
}

const (
	DefaultBlocks       = 3
	DefaultWindowStart  = 8
	DefaultWindowEnd    = 20
	DefaultPollInterval = 5 * time.Minute
	DefaultParticipant  = "default"
)

// Trigger converts the schedule section into a validated trigger.Config.
func (s ScheduleConfig) Trigger() (trigger.Config, error) {
	spacing, err := ParseDurationField("schedule.min_spacing", s.MinSpacing)
	if err != nil {
		return trigger.Config{}, err
	}
	loc, err := s.Location()
	if err != nil {
		return trigger.Config{}, err
	}
	blocks := s.Blocks
	if blocks == 0 {
		blocks = DefaultBlocks
	}
	start, end := s.WindowStartHour, s.WindowEndHour
	if start == 0 && end == 0 {
		start, end = DefaultWindowStart, DefaultWindowEnd
	}
	tc := trigger.Config{
		Blocks:      blocks,
		WindowStart: start,
		WindowEnd:   end,
		MinSpacing:  spacing,
		SurveyID:    s.SurveyID,
		Location:    loc,
	}
	if err := tc.Validate(); err != nil {
		return trigger.Config{}, wrapField("schedule", err)
	}
	return tc, nil
}

func (s ScheduleConfig) Interval() (time.Duration, error) {
	return ParseDurationOrDefault("schedule.poll_interval", s.PollInterval, DefaultPollInterval)
}

func (s ScheduleConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, wrapField("schedule.timezone", err)
	}
	return loc, nil
}

// ParticipantIDs returns the trimmed, de-duplicated participant list.
func (s ScheduleConfig) ParticipantIDs() []string {
	out := make([]string, 0, len(s.Participants))
	seen := map[string]bool{}
	for _, p := range s.Participants {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, DefaultParticipant)
	}
	return out
}

func (r ReportConfig) Report() (report.Config, error) {
	busy, err := ParseDurationField("report.busy_timeout", r.BusyTimeout)
	if err != nil {
		return report.Config{}, err
	}
	return report.Config{
		Drivers:     r.Drivers,
		FilePath:    r.FilePath,
		SQLitePath:  r.SQLitePath,
		BusyTimeout: busy,
		Tag:         r.Tag,
	}, nil
}

func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Forward: logx.ForwardConfig{
			Enabled:    l.Forward.Enabled,
			MinLevel:   l.Forward.MinLevel,
			RatePerSec: l.Forward.RatePerSec,
		},
	}
}

// Validate checks every section that can fail conversion.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errNilConfig
	}
	if _, err := cfg.Schedule.Trigger(); err != nil {
		return err
	}
	if d, err := cfg.Schedule.Interval(); err != nil {
		return err
	} else if d < time.Second {
		return wrapField("schedule.poll_interval", errIntervalTooShort)
	}
	if _, err := cfg.Report.Report(); err != nil {
		return err
	}
	return nil
}
