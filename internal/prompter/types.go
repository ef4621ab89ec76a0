package prompter

import (
	"sync"
	"time"

	"dailyprompt/internal/trigger"
)

// Config is the host-side configuration.
type Config struct {
	Trigger      trigger.Config
	Interval     time.Duration // poll period; DefaultInterval when zero
	Participants []string
}

const (
	DefaultInterval = 5 * time.Minute
	reportTimeout   = 5 * time.Second
)

// FiredEvent is the Data of an eventbus.TypePromptFired event.
type FiredEvent struct {
	Participant string
	SurveyID    int
	At          time.Time // scheduled trigger instant
	PolledAt    time.Time
}

// GeneratedEvent is the Data of an eventbus.TypeScheduleGenerated event.
type GeneratedEvent struct {
	Participant string
	Day         time.Time
	Times       []time.Time // pending entries only
}

// Result pairs a participant with its poll decision.
type Result struct {
	Participant string
	Decision    trigger.Decision
}

// ParticipantStatus is a point-in-time view of one participant's schedule.
type ParticipantStatus struct {
	ID          string
	Initialized bool
	Day         time.Time
	Pending     []time.Time
	Next        time.Time
	Polls       uint64
	Fired       uint64
	Missed      uint64
	LastMessage string
}

// Snapshot is returned by Service.Snapshot.
type Snapshot struct {
	Running      bool
	Interval     time.Duration
	Timezone     string
	RunID        string
	Version      string
	Participants []ParticipantStatus
}

// participant guards one tracker. mu is held across a full Initialize/Poll.
type participant struct {
	id string

	mu      sync.Mutex
	tr      *trigger.Tracker
	polls   uint64
	fired   uint64
	missed  uint64
	lastMsg string
}
