package trigger

import (
	"errors"
	"fmt"
	"time"
)

// NoSurvey is the survey id carried by decisions that do not fire.
const NoSurvey = -1

// DefaultSurveyID is used when Config.SurveyID is zero. Zero therefore cannot
// be chosen as a survey id, and negative ids are rejected since NoSurvey is -1.
const DefaultSurveyID = 1

var (
	ErrInvalidConfig    = errors.New("invalid schedule config")
	ErrSpacingTooLarge  = errors.New("min spacing exceeds block length")
	errNilRand          = errors.New("rand source required")
	errEmptyBlockLength = errors.New("block length is zero")
)

// Rand is the randomness source used by Generate. *math/rand.Rand satisfies it.
type Rand interface {
	Int63n(n int64) int64
}

// Config is the per-run schedule configuration.
type Config struct {
	Blocks      int
	WindowStart int // hour of day, 0..23
	WindowEnd   int // hour of day, exclusive, 1..24
	MinSpacing  time.Duration
	SurveyID    int
	Location    *time.Location
}

// BlockLength returns the uniform block length, truncated to whole milliseconds.
func (c Config) BlockLength() time.Duration {
	if c.Blocks <= 0 || c.WindowEnd <= c.WindowStart {
		return 0
	}
	window := time.Duration(c.WindowEnd-c.WindowStart) * time.Hour
	ms := window.Milliseconds() / int64(c.Blocks)
	return time.Duration(ms) * time.Millisecond
}

// Validate reports whether every block can always satisfy the spacing constraint.
//
// With a previous pick p < blockStart, the accepted range for the next block is
// [max(blockStart, p+MinSpacing), blockStart+BlockLength). It is non-empty for
// every p exactly when MinSpacing <= BlockLength.
func (c Config) Validate() error {
	if c.Blocks <= 0 {
		return fmt.Errorf("%w: blocks must be > 0, got %d", ErrInvalidConfig, c.Blocks)
	}
	if c.WindowStart < 0 || c.WindowStart > 23 {
		return fmt.Errorf("%w: window start hour must be 0..23, got %d", ErrInvalidConfig, c.WindowStart)
	}
	if c.WindowEnd < 1 || c.WindowEnd > 24 {
		return fmt.Errorf("%w: window end hour must be 1..24, got %d", ErrInvalidConfig, c.WindowEnd)
	}
	if c.WindowStart >= c.WindowEnd {
		return fmt.Errorf("%w: window start (%d) must be before window end (%d)", ErrInvalidConfig, c.WindowStart, c.WindowEnd)
	}
	if c.MinSpacing < 0 {
		return fmt.Errorf("%w: min spacing must be >= 0", ErrInvalidConfig)
	}
	if c.SurveyID < 0 {
		return fmt.Errorf("%w: survey id must be >= 0 (0 selects %d), got %d", ErrInvalidConfig, DefaultSurveyID, c.SurveyID)
	}
	bl := c.BlockLength()
	if bl <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errEmptyBlockLength)
	}
	if c.MinSpacing > bl {
		return fmt.Errorf("%w: %s > %s", ErrSpacingTooLarge, c.MinSpacing, bl)
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Config) surveyID() int {
	if c.SurveyID == 0 {
		return DefaultSurveyID
	}
	return c.SurveyID
}

// State tags a trigger entry.
type State uint8

const (
	Pending State = iota
	Consumed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Consumed:
		return "consumed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Entry is one block's trigger instant. At is meaningful only while Pending.
type Entry struct {
	At    time.Time
	State State
}

func (e Entry) Pending() bool { return e.State == Pending }

// Set is the ordered trigger set for one day.
type Set struct {
	Day     time.Time // midnight of the generated day, config location
	Entries []Entry
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := Set{Day: s.Day}
	if s.Entries != nil {
		out.Entries = make([]Entry, len(s.Entries))
		copy(out.Entries, s.Entries)
	}
	return out
}

// PendingCount returns the number of entries not yet consumed.
func (s Set) PendingCount() int {
	n := 0
	for _, e := range s.Entries {
		if e.Pending() {
			n++
		}
	}
	return n
}

// Next returns the earliest pending entry in scan order.
func (s Set) Next() (time.Time, bool) {
	for _, e := range s.Entries {
		if e.Pending() {
			return e.At, true
		}
	}
	return time.Time{}, false
}

// Outcome classifies a Decision.
type Outcome uint8

const (
	OutcomeInitialized Outcome = iota
	OutcomeNotDue
	OutcomeFired
	OutcomeRolledOver
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInitialized:
		return "initialized"
	case OutcomeNotDue:
		return "not_due"
	case OutcomeFired:
		return "fired"
	case OutcomeRolledOver:
		return "rolled_over"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Decision is the result of Initialize or Poll.
type Decision struct {
	Outcome  Outcome
	Fire     bool
	SurveyID int    // NoSurvey unless Fire
	Message  string // human-readable status for the reporting sink

	// At is the fired entry's instant (OutcomeFired only).
	At time.Time
	// Generated is a copy of a freshly installed set (init or rollover).
	Generated *Set
	// Missed counts entries dropped on initialize because they were already past.
	Missed int
	// Initial is the implicit Initialize result when Poll ran on an
	// uninitialized tracker. Hosts report it before the poll itself.
	Initial *Decision
}
