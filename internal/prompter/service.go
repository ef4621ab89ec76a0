package prompter

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"dailyprompt/internal/eventbus"
	"dailyprompt/internal/report"
	"dailyprompt/internal/trigger"
	logx "dailyprompt/pkg/logx"
)

type Option func(*Service)

// WithClock overrides time.Now for scheduled polls and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandSource overrides the per-participant randomness source.
func WithRandSource(fn func(participant string) trigger.Rand) Option {
	return func(s *Service) {
		if fn != nil {
			s.newRand = fn
		}
	}
}

// WithVersion sets the build identifier attached to every report.
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(s *Service) {
		if strings.TrimSpace(id) != "" {
			s.runID = id
		}
	}
}

type Service struct {
	mu sync.Mutex

	cfg   Config
	parts map[string]*participant
	order []string

	c         *cron.Cron
	entryID   cron.EntryID
	runCtx    context.Context
	runCancel context.CancelFunc

	log  logx.Logger
	sink report.Sink
	bus  eventbus.Bus

	now     func() time.Time
	newRand func(participant string) trigger.Rand
	version string
	runID   string

	sinkErrors atomic.Uint64
}

// New builds one tracker per participant. It fails if cfg.Trigger is invalid.
// sink and bus may be nil.
func New(cfg Config, sink report.Sink, bus eventbus.Bus, log logx.Logger, opts ...Option) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log.With(logx.String("component", "prompter")),
		sink:    sink,
		bus:     bus,
		now:     time.Now,
		newRand: defaultRand,
		runID:   uuid.NewString(),
		parts:   map[string]*participant{},
	}
	for _, o := range opts {
		o(s)
	}
	cfg = normalize(cfg)
	for _, id := range cfg.Participants {
		tr, err := trigger.NewTracker(cfg.Trigger, s.newRand(id))
		if err != nil {
			return nil, err
		}
		s.parts[id] = &participant{id: id, tr: tr}
		s.order = append(s.order, id)
	}
	s.cfg = cfg
	return s, nil
}

func normalize(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	ids := make([]string, 0, len(cfg.Participants))
	seen := map[string]bool{}
	for _, id := range cfg.Participants {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		ids = []string{"default"}
	}
	cfg.Participants = ids
	return cfg
}

var randSeq atomic.Uint64

func defaultRand(participant string) trigger.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(participant))
	seed := time.Now().UnixNano() ^ int64(h.Sum64()) ^ int64(randSeq.Add(1))
	return rand.New(rand.NewSource(seed))
}

func (s *Service) RunID() string { return s.runID }

// SinkErrors counts report failures swallowed so far.
func (s *Service) SinkErrors() uint64 { return s.sinkErrors.Load() }

func (s *Service) participants() []*participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.parts[id])
	}
	return out
}

// Start initializes participants that have no set yet and begins polling
// every cfg.Interval. Sets kept from an earlier Start are not rebuilt.
//
// Polls and their reports run under a context derived from ctx that is only
// cancelled by Stop, after the last in-flight poll has finished.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	loc := cfg.Trigger.Location
	if loc == nil {
		loc = time.Local
	}
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCtx, s.runCancel = runCtx, runCancel
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: s.log})),
	)
	if err := s.scheduleLocked(cfg.Interval); err != nil {
		s.c = nil
		s.runCtx, s.runCancel = nil, nil
		s.mu.Unlock()
		runCancel()
		return err
	}
	c := s.c
	s.mu.Unlock()

	s.Initialize(runCtx, s.now())
	c.Start()
	s.log.Info("service started",
		logx.String("tz", loc.String()),
		logx.Duration("interval", cfg.Interval),
		logx.Int("participants", len(cfg.Participants)),
		logx.String("run_id", s.runID),
	)
	return nil
}

// scheduleLocked (re)registers the poll job. Call with s.mu held and s.c set.
func (s *Service) scheduleLocked(every time.Duration) error {
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
		s.entryID = 0
	}
	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", every), s.scheduledPoll)
	if err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}
	s.entryID = id
	return nil
}

func (s *Service) scheduledPoll() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.PollNow(ctx, s.now())
}

// Stop stops polling and waits for an in-flight poll, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.entryID = 0
	s.runCancel = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Initialize builds and reports a set for every participant that has none.
// Participants already holding a set are left alone so a block cannot fire
// twice in one day.
func (s *Service) Initialize(ctx context.Context, now time.Time) []Result {
	parts := s.participants()
	out := make([]Result, 0, len(parts))
	for _, p := range parts {
		p.mu.Lock()
		if p.tr.Initialized() {
			p.mu.Unlock()
			continue
		}
		d := p.initializeLocked(now)
		p.mu.Unlock()

		s.handle(ctx, p.id, now, d)
		out = append(out, Result{Participant: p.id, Decision: d})
	}
	return out
}

func (p *participant) initializeLocked(now time.Time) trigger.Decision {
	d := p.tr.Initialize(now)
	p.missed += uint64(d.Missed)
	p.lastMsg = d.Message
	return d
}

// PollNow polls every participant once. Each participant fires at most once.
func (s *Service) PollNow(ctx context.Context, now time.Time) []Result {
	parts := s.participants()
	out := make([]Result, 0, len(parts))
	for _, p := range parts {
		p.mu.Lock()
		d := p.tr.Poll(now)
		p.polls++
		if d.Initial != nil {
			p.missed += uint64(d.Initial.Missed)
		}
		if d.Fire {
			p.fired++
		}
		p.lastMsg = d.Message
		p.mu.Unlock()

		s.handle(ctx, p.id, now, d)
		out = append(out, Result{Participant: p.id, Decision: d})
	}
	return out
}

// handle runs the side effects of a decision: report, events, logs.
func (s *Service) handle(ctx context.Context, pid string, now time.Time, d trigger.Decision) {
	if d.Initial != nil {
		s.handle(ctx, pid, now, *d.Initial)
	}
	s.report(ctx, pid, d.Message)

	log := s.log.With(logx.String("participant", pid))
	switch d.Outcome {
	case trigger.OutcomeFired:
		log.Info("prompt fired", logx.Int("survey_id", d.SurveyID), logx.Time("scheduled", d.At))
		s.publish(eventbus.TypePromptFired, now, FiredEvent{Participant: pid, SurveyID: d.SurveyID, At: d.At, PolledAt: now})
	case trigger.OutcomeInitialized, trigger.OutcomeRolledOver:
		if d.Generated == nil {
			return
		}
		times := make([]time.Time, 0, len(d.Generated.Entries))
		for _, e := range d.Generated.Entries {
			if e.Pending() {
				times = append(times, e.At)
			}
		}
		log.Debug("schedule generated", logx.String("outcome", d.Outcome.String()), logx.String("times", d.Message), logx.Int("missed", d.Missed))
		s.publish(eventbus.TypeScheduleGenerated, now, GeneratedEvent{Participant: pid, Day: d.Generated.Day, Times: times})
	default:
		log.Trace("poll", logx.String("outcome", d.Outcome.String()))
	}
}

// report never fails the caller: sink errors are logged and counted.
func (s *Service) report(ctx context.Context, pid, msg string) {
	if s.sink == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	err := s.sink.Report(rctx, report.Record{
		At:          s.now(),
		Version:     s.version,
		Message:     msg,
		Participant: pid,
		RunID:       s.runID,
	})
	if err != nil {
		s.sinkErrors.Add(1)
		s.log.Warn("report failed", logx.String("participant", pid), logx.Err(err))
	}
}

func (s *Service) publish(typ string, at time.Time, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: at, Data: data})
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}

// Apply swaps in a new config.
//
// A survey id change is applied in place. Other schedule changes reconfigure
// each tracker under its participant lock: today's set is redrawn but blocks
// already spent today stay spent. New participants are initialized before they
// become visible to polls when the service is running, otherwise lazily.
// Counters survive; removed participants are dropped.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = normalize(cfg)
	if err := cfg.Trigger.Validate(); err != nil {
		return err
	}
	now := s.now()

	s.mu.Lock()
	prev := s.cfg
	changed := !sameSchedule(prev.Trigger, cfg.Trigger)
	running := s.c != nil
	reportCtx := ctx
	if running && s.runCtx != nil {
		reportCtx = s.runCtx
	}

	var (
		pending []Result
		added   int
		removed int
	)
	parts := make(map[string]*participant, len(cfg.Participants))
	for _, id := range cfg.Participants {
		p, ok := s.parts[id]
		if !ok {
			tr, err := trigger.NewTracker(cfg.Trigger, s.newRand(id))
			if err != nil {
				s.mu.Unlock()
				return err
			}
			p = &participant{id: id, tr: tr}
			if running {
				pending = append(pending, Result{Participant: id, Decision: p.initializeLocked(now)})
			}
			added++
			parts[id] = p
			continue
		}

		p.mu.Lock()
		if changed {
			d, ok, err := p.tr.Reconfigure(cfg.Trigger, now)
			if err != nil {
				p.mu.Unlock()
				s.mu.Unlock()
				return err
			}
			if ok {
				p.lastMsg = d.Message
				p.missed += uint64(d.Missed)
				pending = append(pending, Result{Participant: id, Decision: d})
			}
		} else {
			p.tr.SetSurveyID(cfg.Trigger.SurveyID)
		}
		p.mu.Unlock()
		parts[id] = p
	}
	for id := range s.parts {
		if _, ok := parts[id]; !ok {
			removed++
		}
	}
	s.parts = parts
	s.order = append([]string(nil), cfg.Participants...)
	s.cfg = cfg

	if running && cfg.Interval != prev.Interval {
		if err := s.scheduleLocked(cfg.Interval); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.log.Info("config applied",
		logx.Bool("schedule_changed", changed),
		logx.Int("survey_id", cfg.Trigger.SurveyID),
		logx.Int("added", added),
		logx.Int("removed", removed),
		logx.Duration("interval", cfg.Interval),
	)

	for _, r := range pending {
		s.handle(reportCtx, r.Participant, now, r.Decision)
	}
	return nil
}

// sameSchedule compares everything that shapes the set. Survey id is not part of it.
func sameSchedule(a, b trigger.Config) bool {
	locName := func(l *time.Location) string {
		if l == nil {
			return time.Local.String()
		}
		return l.String()
	}
	return a.Blocks == b.Blocks &&
		a.WindowStart == b.WindowStart &&
		a.WindowEnd == b.WindowEnd &&
		a.MinSpacing == b.MinSpacing &&
		locName(a.Location) == locName(b.Location)
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	running := s.c != nil
	s.mu.Unlock()

	loc := cfg.Trigger.Location
	if loc == nil {
		loc = time.Local
	}
	out := Snapshot{
		Running:  running,
		Interval: cfg.Interval,
		Timezone: loc.String(),
		RunID:    s.runID,
		Version:  s.version,
	}
	for _, p := range s.participants() {
		p.mu.Lock()
		st := ParticipantStatus{
			ID:          p.id,
			Initialized: p.tr.Initialized(),
			Polls:       p.polls,
			Fired:       p.fired,
			Missed:      p.missed,
			LastMessage: p.lastMsg,
		}
		if set, ok := p.tr.Set(); ok {
			st.Day = set.Day
			for _, e := range set.Entries {
				if e.Pending() {
					st.Pending = append(st.Pending, e.At)
				}
			}
			st.Next, _ = set.Next()
		}
		p.mu.Unlock()
		out.Participants = append(out.Participants, st)
	}
	return out
}
