// Package scheduler provides the bot's periodic triggers (interval and daily)
// on top of robfig/cron. It only fires registered jobs; the jobs themselves
// serialize their own state.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "quackbot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Australia/Melbourne"
}

type Job func(ctx context.Context) error

type entry struct {
	name string
	spec string
	id   cron.EntryID
	job  Job
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*entry

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*entry{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Location returns the configured civil timezone (UTC if unset or invalid).
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationLocked()
}

func (s *Service) locationLocked() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		s.loc = time.UTC
		return s.loc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		s.loc = time.UTC
		return s.loc
	}
	s.loc = loc
	return s.loc
}

// AddInterval registers a job that fires every `every` (minimum 1s).
// Registration before Start is allowed; the job is scheduled on Start.
func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	if every < time.Second {
		return fmt.Errorf("interval too small: %v", every)
	}
	return s.add(name, "@every "+every.String(), job)
}

// AddDaily registers a job that fires every day at the given local HH:MM.
func (s *Service) AddDaily(name, atHHMM string, job Job) error {
	h, m, err := ParseHHMM(atHHMM)
	if err != nil {
		return err
	}
	return s.add(name, fmt.Sprintf("%d %d * * *", m, h), job)
}

func (s *Service) add(name, spec string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" || job == nil {
		return fmt.Errorf("schedule needs a name and a job")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("bad schedule spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok && s.c != nil {
		s.c.Remove(old.id)
	}
	e := &entry{name: name, spec: spec, job: job}
	s.defs[name] = e
	if s.c != nil {
		return s.scheduleLocked(e)
	}
	return nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil {
		s.c.Remove(e.id)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) scheduleLocked(e *entry) error {
	name := e.name
	id, err := s.c.AddFunc(e.spec, func() { s.run(name) })
	if err != nil {
		return err
	}
	e.id = id
	return nil
}

func (s *Service) run(name string) {
	s.mu.Lock()
	e, ok := s.defs[name]
	ctx := s.runCtx
	s.mu.Unlock()
	if !ok || ctx == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("schedule panicked",
				logx.String("schedule", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	start := time.Now()
	if err := e.job(ctx); err != nil {
		s.log.Warn("schedule failed", logx.String("schedule", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("schedule ran", logx.String("schedule", name), logx.Duration("took", time.Since(start)))
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return
	}
	loc := s.locationLocked()
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, e := range s.defs {
		if err := s.scheduleLocked(e); err != nil {
			s.log.Warn("failed to schedule", logx.String("schedule", e.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.runCtx = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}

// ParseHHMM parses "HH:MM" in 24h time.
func ParseHHMM(v string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", v)
	}
	return h, m, nil
}
