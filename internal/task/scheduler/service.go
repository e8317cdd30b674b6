package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	logx "sheetcast/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		defs: map[string]*onceDef{},
	}
}

// Location returns the zone fire times are reported in. It is resolved on
// Start; before that the configured zone is loaded on demand.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationLocked()
}

// Start starts cron triggering and registers jobs added before Start.
// Jobs run with contexts derived from ctx.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	s.loc = loc
	s.base = ctx
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log: s.log})),
		cron.WithLogger(cronLogger{log: s.log}),
	)
	for _, d := range s.defs {
		s.addCronLocked(d)
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("pending", len(s.defs)))
	return nil
}

// Stop stops triggering and waits (bounded by ctx) for running jobs.
// Pending definitions are kept so a later Start resumes them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	for _, d := range s.defs {
		d.entryID = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for running jobs", logx.Err(ctx.Err()))
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// AddOnce registers job to run once at at. A job with the same name is
// replaced. The returned name is the identifier for Remove and Next.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}
	if err := ValidateFireTime(at, time.Now()); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)
	s.ver++
	d := &onceDef{name: name, at: at, timeout: timeout, job: job, ver: s.ver}
	s.defs[name] = d
	if s.c != nil {
		s.addCronLocked(d)
	}
	s.log.Debug("once registered",
		logx.String("name", name),
		logx.String("at", at.In(s.locationLocked()).Format(SendAtLayout)),
		logx.Duration("in", time.Until(at).Round(time.Second)),
		logx.Duration("timeout", timeout),
	)
	return name, nil
}

// Remove cancels a pending job. It reports whether one was pending.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("once removed", logx.String("name", name))
	}
	return removed
}

// Next returns the pending fire time for name.
func (s *Service) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[strings.TrimSpace(name)]
	if !ok {
		return time.Time{}, false
	}
	return d.at, true
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) addCronLocked(d *onceDef) {
	ver := d.ver
	name := d.name
	d.entryID = s.c.Schedule(onceSchedule{at: d.at}, cron.FuncJob(func() {
		s.fire(name, ver)
	}))
}

// fire claims the definition (ignoring stale triggers from a replaced or
// removed job) and runs it.
func (s *Service) fire(name string, ver uint64) {
	s.mu.Lock()
	d, ok := s.defs[name]
	if !ok || d.ver != ver {
		s.mu.Unlock()
		return
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	base := s.base
	s.mu.Unlock()

	if base == nil {
		base = context.Background()
	}
	ctx := base
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, d.timeout)
	}
	defer cancel()

	start := time.Now()
	err := s.run(ctx, d)
	args := []logx.Field{logx.String("name", name), logx.Duration("took", time.Since(start))}
	if err != nil {
		s.log.Error("once failed", append(args, logx.Err(err))...)
		return
	}
	s.log.Info("once finished", args...)
}

func (s *Service) run(ctx context.Context, d *onceDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("once panicked", logx.String("name", d.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.job(ctx)
}

func (s *Service) locationLocked() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// cronLogger routes cron's internal logging through logx.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
