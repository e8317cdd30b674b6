package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetcast/internal/task/scheduler"
	logx "sheetcast/pkg/logx"
)

// Job is a single scheduled broadcast run. It moves through
// CONFIGURED -> WAITING -> FIRING -> DONE exactly once.
//
// Re-running a job (or the program) sends again to every active recipient;
// nothing records who already received the message.
type Job struct {
	deps Deps
	log  logx.Logger

	mu     sync.Mutex
	cfg    JobConfig
	state  State
	result Result
	err    error
	done   chan struct{}
}

func NewJob(cfg JobConfig, deps Deps) (*Job, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, errors.New("broadcast: name required")
	}
	if strings.TrimSpace(cfg.Text) == "" {
		return nil, errors.New("broadcast: message text required")
	}
	if cfg.FireAt.IsZero() {
		return nil, errors.New("broadcast: fire time required")
	}
	if deps.Sender == nil || deps.Fetcher == nil || deps.Scheduler == nil {
		return nil, errors.New("broadcast: sender, fetcher and scheduler required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Job{
		deps: deps,
		log:  log.With(logx.String("comp", "broadcast"), logx.String("job", cfg.Name)),
		cfg:  cfg,
		done: make(chan struct{}),
	}, nil
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// FireAt returns the currently scheduled fire time.
func (j *Job) FireAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cfg.FireAt
}

// Done is closed once the job reaches DONE.
func (j *Job) Done() <-chan struct{} { return j.done }

// Start registers the fire timer and moves the job to WAITING.
func (j *Job) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateConfigured {
		return fmt.Errorf("broadcast: start in state %s", j.state)
	}
	if err := scheduler.ValidateFireTime(j.cfg.FireAt, j.deps.Now()); err != nil {
		return err
	}
	if _, err := j.deps.Scheduler.AddOnce(j.cfg.Name, j.cfg.FireAt, j.cfg.Timeout, j.fire); err != nil {
		return fmt.Errorf("broadcast: schedule: %w", err)
	}
	j.state = StateWaiting
	j.log.Info("broadcast scheduled", logx.Time("at", j.cfg.FireAt), logx.Duration("delay", j.cfg.Delay))
	return nil
}

// Reschedule moves the pending fire time. Valid only while WAITING.
func (j *Job) Reschedule(at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateWaiting {
		return fmt.Errorf("%w (state %s)", ErrNotWaiting, j.state)
	}
	if err := scheduler.ValidateFireTime(at, j.deps.Now()); err != nil {
		return err
	}
	if _, err := j.deps.Scheduler.AddOnce(j.cfg.Name, at, j.cfg.Timeout, j.fire); err != nil {
		return fmt.Errorf("broadcast: reschedule: %w", err)
	}
	old := j.cfg.FireAt
	j.cfg.FireAt = at
	j.log.Info("broadcast rescheduled", logx.Time("from", old), logx.Time("to", at))
	return nil
}

// SetText replaces the message. Valid only while WAITING.
func (j *Job) SetText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("broadcast: message text required")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateWaiting {
		return fmt.Errorf("%w (state %s)", ErrNotWaiting, j.state)
	}
	j.cfg.Text = text
	j.log.Info("broadcast message updated", logx.Int("len", len([]rune(text))))
	return nil
}

// Wait blocks until the job is DONE and returns its outcome. If ctx ends
// while the job is still WAITING, the timer is cancelled, the job is marked
// DONE and ctx.Err() is returned.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		return j.outcome()
	case <-ctx.Done():
	}

	j.mu.Lock()
	if j.state == StateWaiting || j.state == StateConfigured {
		j.deps.Scheduler.Remove(j.cfg.Name)
		j.finishLocked(Result{}, ctx.Err())
		j.mu.Unlock()
		j.log.Info("broadcast cancelled before firing", logx.Err(ctx.Err()))
		return Result{}, ctx.Err()
	}
	j.mu.Unlock()
	return Result{}, ctx.Err()
}

func (j *Job) outcome() (Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) finishLocked(res Result, err error) {
	j.state = StateDone
	j.result = res
	j.err = err
	close(j.done)
}

// fire is the scheduler callback.
func (j *Job) fire(ctx context.Context) error {
	j.mu.Lock()
	if j.state != StateWaiting {
		j.mu.Unlock()
		return nil
	}
	j.state = StateFiring
	text := j.cfg.Text
	delay := j.cfg.Delay
	j.mu.Unlock()

	res, err := j.run(ctx, text, delay)

	j.mu.Lock()
	j.finishLocked(res, err)
	j.mu.Unlock()
	return err
}

func (j *Job) run(ctx context.Context, text string, delay time.Duration) (Result, error) {
	res := Result{RunID: uuid.NewString(), StartedAt: j.deps.Now()}
	log := j.log.With(logx.String("run_id", res.RunID))
	log.Info("broadcast firing")

	records, err := j.deps.Fetcher.FetchRecords(ctx)
	if err != nil {
		res.FinishedAt = j.deps.Now()
		return res, fmt.Errorf("fetch recipients: %w", err)
	}
	res.Records = len(records)

	recipients, err := ActiveRecipients(records)
	if err != nil {
		res.FinishedAt = j.deps.Now()
		return res, err
	}
	res.Recipients = len(recipients)
	log.Info("recipients resolved", logx.Int("records", res.Records), logx.Int("active", res.Recipients))

	sent, err := send(ctx, j.deps.Sender, recipients, text, delay, log)
	res.Sent = sent
	res.FinishedAt = j.deps.Now()
	if err != nil {
		log.Error("broadcast aborted", logx.Int("sent", sent), logx.Int("recipients", res.Recipients), logx.Err(err))
		return res, err
	}
	log.Info("broadcast finished", logx.Int("sent", sent), logx.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}
