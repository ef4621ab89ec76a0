package trigger

import (
	"time"
)

// Tracker holds one schedule's current trigger set.
//
// A Tracker is not safe for concurrent use. Callers that may poll from
// several goroutines must hold a lock across each Initialize/Poll call.
type Tracker struct {
	cfg Config
	rng Rand

	set  Set
	init bool
}

// NewTracker validates cfg and returns an uninitialized tracker.
func NewTracker(cfg Config, rng Rand) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errNilRand
	}
	return &Tracker{cfg: cfg, rng: rng}, nil
}

func (t *Tracker) Config() Config { return t.cfg }

func (t *Tracker) Initialized() bool { return t.init }

// Set returns a copy of the current trigger set.
func (t *Tracker) Set() (Set, bool) {
	if !t.init {
		return Set{}, false
	}
	return t.set.Clone(), true
}

// Install replaces the current set as-is. Entry order is kept.
func (t *Tracker) Install(s Set) {
	t.set = s.Clone()
	t.init = true
}

// SetSurveyID changes the id carried by future fires. The current set is kept.
func (t *Tracker) SetSurveyID(id int) { t.cfg.SurveyID = id }

// Reconfigure switches the tracker to cfg at now.
//
// An uninitialized tracker only takes the new config and ok is false. Otherwise
// the set is regenerated as Initialize would, except that every block up to
// and including the one holding the latest consumed entry of the old set stays
// consumed, so a block never prompts twice in one day. If the old set already
// belongs to a later day, today counts as spent and tomorrow's set is used.
func (t *Tracker) Reconfigure(cfg Config, now time.Time) (d Decision, ok bool, err error) {
	if err := cfg.Validate(); err != nil {
		return Decision{}, false, err
	}
	prev, wasInit := t.set, t.init
	t.cfg = cfg
	if !wasInit {
		return Decision{}, false, nil
	}
	loc := cfg.location()

	next := generate(now, cfg, t.rng)
	used := usedBlocks(prev, next, cfg)
	missed := 0
	for i := range next.Entries {
		switch {
		case i < used:
			next.Entries[i].State = Consumed
		case next.Entries[i].At.Before(now):
			next.Entries[i].State = Consumed
			missed++
		}
	}
	if next.PendingCount() == 0 {
		next = generate(nextDay(now, loc), cfg, t.rng)
	}
	t.Install(next)

	gen := next.Clone()
	return Decision{
		Outcome:   OutcomeInitialized,
		SurveyID:  NoSurvey,
		Message:   generatedMessage(next, loc),
		Generated: &gen,
		Missed:    missed,
	}, true, nil
}

// usedBlocks returns how many leading blocks of next are already spent by
// consumed entries of prev.
func usedBlocks(prev, next Set, cfg Config) int {
	pk, nk := dateKey(prev.Day), dateKey(next.Day)
	if pk < nk {
		return 0
	}
	if pk > nk {
		return len(next.Entries)
	}
	var last time.Time
	found := false
	for _, e := range prev.Entries {
		if !e.Pending() && (!found || e.At.After(last)) {
			last, found = e.At, true
		}
	}
	if !found {
		return 0
	}
	n := 0
	for i, b := range BlockBounds(next.Day, cfg) {
		if !b[0].After(last) {
			n = i + 1
		}
	}
	return n
}

// dateKey orders calendar days independent of the zone they were built in.
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Initialize generates today's set and consumes every entry strictly before
// now. If that leaves nothing pending, tomorrow's set is installed instead.
func (t *Tracker) Initialize(now time.Time) Decision {
	loc := t.cfg.location()

	today := generate(now, t.cfg, t.rng)
	missed := 0
	for i := range today.Entries {
		if today.Entries[i].At.Before(now) {
			today.Entries[i].State = Consumed
			missed++
		}
	}
	if today.PendingCount() == 0 {
		today = generate(nextDay(now, loc), t.cfg, t.rng)
	}
	t.Install(today)

	gen := today.Clone()
	return Decision{
		Outcome:   OutcomeInitialized,
		SurveyID:  NoSurvey,
		Message:   generatedMessage(today, loc),
		Generated: &gen,
		Missed:    missed,
	}
}

// Poll fires at most one prompt.
//
// Entries are scanned in stored order. The first pending entry decides: if it
// is after now nothing is due; otherwise it is consumed and fired. When no
// entry is pending, tomorrow's set is installed and the call does not fire.
func (t *Tracker) Poll(now time.Time) Decision {
	var initial *Decision
	prefix := ""
	if !t.init {
		d := t.Initialize(now)
		initial = &d
		prefix = msgUninitialized
	}
	loc := t.cfg.location()

	for i := range t.set.Entries {
		e := t.set.Entries[i]
		if !e.Pending() {
			continue
		}
		if e.At.After(now) {
			return Decision{
				Outcome:  OutcomeNotDue,
				SurveyID: NoSurvey,
				Message:  prefix + msgNotDue,
				Initial:  initial,
			}
		}
		t.set.Entries[i].State = Consumed
		return Decision{
			Outcome:  OutcomeFired,
			Fire:     true,
			SurveyID: t.cfg.surveyID(),
			Message:  prefix + msgPrompting + FormatTime(e.At, loc),
			At:       e.At,
			Initial:  initial,
		}
	}

	next := generate(nextDay(now, loc), t.cfg, t.rng)
	t.Install(next)
	gen := next.Clone()
	return Decision{
		Outcome:   OutcomeRolledOver,
		SurveyID:  NoSurvey,
		Message:   prefix + generatedMessage(next, loc),
		Generated: &gen,
		Initial:   initial,
	}
}
