// Package scheduler controls when consolidation runs. One scheduler per
// process tracks, for each agent, the last run time, whether a run is
// active, and whether today's cron slot already fired.
//
// Two timers feed the same trigger path: an idle sweep every 10 minutes
// and a cron check every minute. Manual triggers share the path and its
// guards. At most one consolidation per agent runs concurrently;
// colliding triggers are dropped with a log, never queued.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clawdbot/sheep/pkg/consolidate"
)

// Timer cadences and the default trigger guards.
const (
	idleTick = 10 * time.Minute
	cronTick = 1 * time.Minute

	// DefaultMinInterval is the minimum spacing between non-forced runs
	// for one agent.
	DefaultMinInterval = 1 * time.Hour

	// DefaultIdleThreshold is how long an agent must be quiet before the
	// idle sweep considers it consolidation-ready.
	DefaultIdleThreshold = 30 * time.Minute
)

// Runner executes one consolidation for an agent. Implemented by the
// pipeline; indirected so tests can script runs.
type Runner interface {
	Consolidate(ctx context.Context, agentID string) (*consolidate.Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, agentID string) (*consolidate.Result, error)

func (f RunnerFunc) Consolidate(ctx context.Context, agentID string) (*consolidate.Result, error) {
	return f(ctx, agentID)
}

// Config tunes a Scheduler.
type Config struct {
	Runner Runner
	Logger *slog.Logger

	// MinInterval guards non-forced triggers. Default DefaultMinInterval.
	MinInterval time.Duration

	// IdleThreshold qualifies agents for the idle sweep. Default
	// DefaultIdleThreshold.
	IdleThreshold time.Duration

	// Cron is a 5-field cron expression selecting the daily slot
	// ("30 3 * * *" for 03:30). Empty disables the cron timer.
	Cron string

	// now is swapped in tests.
	now func() time.Time
}

type agentState struct {
	lastRun     time.Time
	lastSeen    time.Time
	active      bool
	cronRunDate string // "2006-01-02" of the last cron-initiated run
}

// Scheduler is the per-process consolidation controller.
type Scheduler struct {
	cfg  Config
	log  *slog.Logger
	cron *cronSpec
	now  func() time.Time

	mu     sync.Mutex
	agents map[string]*agentState

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Scheduler. Start must be called to arm the timers.
func New(cfg Config) (*Scheduler, error) {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	var spec *cronSpec
	if cfg.Cron != "" {
		var err error
		spec, err = parseCron(cfg.Cron)
		if err != nil {
			return nil, err
		}
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cfg:    cfg,
		log:    log,
		cron:   spec,
		now:    now,
		agents: make(map[string]*agentState),
		stop:   make(chan struct{}),
	}, nil
}

// Observe records activity for an agent, feeding the idle timer.
func (s *Scheduler) Observe(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(agentID).lastSeen = s.now()
}

// Active reports whether a consolidation is currently running for the
// agent.
func (s *Scheduler) Active(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.agents[agentID]
	return ok && st.active
}

// LastRun returns the agent's last consolidation start time.
func (s *Scheduler) LastRun(agentID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.agents[agentID]
	if !ok {
		return time.Time{}
	}
	return st.lastRun
}

// Trigger requests a consolidation for the agent. It returns nil
// without starting a run when the agent is already consolidating, or
// when the minimum interval has not elapsed and force is false. The
// returned result is the completed run's summary.
func (s *Scheduler) Trigger(ctx context.Context, agentID string, force bool) (*consolidate.Result, error) {
	if !s.acquire(agentID, force, "manual") {
		return nil, nil
	}
	return s.run(ctx, agentID)
}

// acquire atomically checks the guards and inserts the agent into the
// active set. Returns false when the trigger must be dropped.
func (s *Scheduler) acquire(agentID string, force bool, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(agentID)
	if st.active {
		s.log.Info("consolidation trigger dropped: already running", "agent", agentID, "source", source)
		return false
	}
	if !force && !st.lastRun.IsZero() && s.now().Sub(st.lastRun) < s.cfg.MinInterval {
		s.log.Info("consolidation trigger dropped: min interval", "agent", agentID, "source", source)
		return false
	}
	st.active = true
	st.lastRun = s.now()
	return true
}

func (s *Scheduler) run(ctx context.Context, agentID string) (*consolidate.Result, error) {
	defer func() {
		s.mu.Lock()
		s.state(agentID).active = false
		s.mu.Unlock()
	}()
	res, err := s.cfg.Runner.Consolidate(ctx, agentID)
	if err != nil {
		s.log.Error("consolidation failed", "agent", agentID, "error", err)
		return res, err
	}
	return res, nil
}

// Start arms the idle and cron timers. Stop cancels them.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx, idleTick, s.idleSweep)
	if s.cron != nil {
		s.wg.Add(1)
		go s.loop(ctx, cronTick, s.cronSweep)
	}
}

// Stop shuts the timers down and waits for sweeps in flight.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, tick time.Duration, sweep func(context.Context)) {
	defer s.wg.Done()
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-t.C:
			sweep(ctx)
		}
	}
}

// idleSweep triggers consolidation for agents quiet beyond the idle
// threshold.
func (s *Scheduler) idleSweep(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	var due []string
	for id, st := range s.agents {
		if st.active || st.lastSeen.IsZero() {
			continue
		}
		if now.Sub(st.lastSeen) >= s.cfg.IdleThreshold {
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		if !s.acquire(id, false, "idle") {
			continue
		}
		if _, err := s.run(ctx, id); err != nil {
			continue
		}
	}
}

// cronSweep triggers each agent once per day at the configured slot.
func (s *Scheduler) cronSweep(ctx context.Context) {
	now := s.now()
	if !s.cron.matches(now) {
		return
	}
	today := now.Format("2006-01-02")

	s.mu.Lock()
	var due []string
	for id, st := range s.agents {
		if st.active || st.cronRunDate == today {
			continue
		}
		due = append(due, id)
	}
	s.mu.Unlock()

	for _, id := range due {
		if !s.acquire(id, true, "cron") {
			continue
		}
		s.mu.Lock()
		s.state(id).cronRunDate = today
		s.mu.Unlock()
		if _, err := s.run(ctx, id); err != nil {
			continue
		}
	}
}

// state returns the agent's record, creating it. Caller holds mu.
func (s *Scheduler) state(agentID string) *agentState {
	st, ok := s.agents[agentID]
	if !ok {
		st = &agentState{}
		s.agents[agentID] = st
	}
	return st
}
