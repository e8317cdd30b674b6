package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sheetcast/internal/broadcast"
	"sheetcast/internal/config"
	rtsup "sheetcast/internal/runtime/supervisor"
	"sheetcast/internal/sheets"
	"sheetcast/internal/task/scheduler"
	kit "sheetcast/internal/transport"
	telegram "sheetcast/internal/transport/telegram/adapter"
	logx "sheetcast/pkg/logx"
)

// Broadcaster waits for the configured instant, sends the message once to
// every active recipient and returns.
type Broadcaster struct {
	opts Options
	env  config.Env
	file config.File
	// watch is set when the config file exists and can be hot reloaded.
	watch bool

	log   logx.Logger
	logs  *logx.Service
	sched BroadcastScheduler
	job   *broadcast.Job
}

// BroadcastScheduler is the timer backend the job waits on.
type BroadcastScheduler interface {
	broadcast.Scheduler
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Next(name string) (time.Time, bool)
}

// BroadcasterDeps overrides the external collaborators. Zero fields are
// built from configuration.
type BroadcasterDeps struct {
	Sender    kit.Sender
	Fetcher   broadcast.RecordFetcher
	Scheduler BroadcastScheduler
	Now       func() time.Time
}

func NewBroadcaster(ctx context.Context, opts Options) (*Broadcaster, error) {
	return newBroadcaster(ctx, opts, BroadcasterDeps{})
}

func newBroadcaster(ctx context.Context, opts Options, deps BroadcasterDeps) (*Broadcaster, error) {
	st, err := loadSettings(opts, config.EnvBotToken, config.EnvSheetName, config.EnvTimezone)
	if err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	fireAt, err := scheduler.ParseSendAt(st.file.Broadcast.SendAt, st.env.Timezone)
	if err != nil {
		return nil, err
	}
	if err := scheduler.ValidateFireTime(fireAt, deps.Now()); err != nil {
		return nil, err
	}
	delay, err := st.file.BroadcastDelay()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(st.file.Logging.Level)
	if deps.Fetcher == nil {
		creds := opts.CredentialsFile
		if strings.TrimSpace(creds) == "" {
			creds = config.CredentialsFile
		}
		sc, err := sheets.New(ctx, sheets.Config{
			SpreadsheetName: st.env.SheetName,
			CredentialsFile: creds,
			Worksheet:       st.file.Broadcast.Worksheet,
		}, bootLog)
		if err != nil {
			return nil, err
		}
		deps.Fetcher = sc
	}
	if deps.Sender == nil {
		ad, err := telegram.New(telegram.Config{Token: st.env.BotToken, Offline: true}, bootLog)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		deps.Sender = ad
	}

	logs, log := logx.New(st.file.Log(), deps.Sender)
	log = log.With(logx.String("comp", "app"))

	sched := deps.Scheduler
	if sched == nil {
		sched = scheduler.New(scheduler.Config{Timezone: st.env.Timezone}, log.With(logx.String("comp", "scheduler")))
	}
	job, err := broadcast.NewJob(broadcast.JobConfig{
		Name:   st.file.BroadcastName(),
		FireAt: fireAt,
		Text:   st.file.Broadcast.Message,
		Delay:  delay,
	}, broadcast.Deps{
		Sender:    deps.Sender,
		Fetcher:   deps.Fetcher,
		Scheduler: sched,
		Log:       log,
		Now:       deps.Now,
	})
	if err != nil {
		closeLogs(logs, log)
		return nil, err
	}

	return &Broadcaster{
		opts:  opts,
		env:   st.env,
		file:  st.file,
		watch: st.fileFound,
		log:   log,
		logs:  logs,
		sched: sched,
		job:   job,
	}, nil
}

// Run blocks until the job completes or ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer closeLogs(b.logs, b.log)

	sup := rtsup.New(ctx, rtsup.WithLogger(b.log))
	if err := b.sched.Start(sup.Context()); err != nil {
		return err
	}
	defer func() {
		sctx, cancel := stopContext()
		defer cancel()
		b.sched.Stop(sctx)
		sup.Cancel()
		_ = sup.Wait(sctx)
	}()

	if err := b.job.Start(sup.Context()); err != nil {
		return err
	}
	logx.Status(logx.StatusWaiting, "⏳ Scheduled for %s (%s)", strings.TrimSpace(b.file.Broadcast.SendAt), b.env.Timezone)

	if b.watch {
		w := config.NewWatcher(b.opts.ConfigPath, b.file, b.log.With(logx.String("comp", "config")), b.applyConfig)
		sup.Go("config.watch", w.Watch)
	}

	res, err := b.job.Wait(ctx)
	if err != nil {
		if isShutdown(err) {
			logx.Status(logx.StatusFailed, "⏹ Cancelled before sending")
		} else {
			logx.Status(logx.StatusFailed, "❌ Broadcast failed: %v", err)
		}
		return err
	}
	b.log.Info("broadcast complete",
		logx.String("run_id", res.RunID),
		logx.Int("recipients", res.Recipients),
		logx.Int("sent", res.Sent),
	)
	logx.Status(logx.StatusDone, "✅ Message sent once. Exiting.")
	return nil
}

// applyConfig hot-applies a reloaded config file while the job is waiting.
func (b *Broadcaster) applyConfig(old, cur config.File) {
	for _, name := range config.Changes(old, cur) {
		switch name {
		case "broadcast.send_at":
			at, err := scheduler.ParseSendAt(cur.Broadcast.SendAt, b.env.Timezone)
			if err == nil {
				err = b.job.Reschedule(at)
			}
			if err != nil {
				b.log.Warn("send_at change rejected", logx.String("send_at", cur.Broadcast.SendAt), logx.Err(err))
				continue
			}
			logx.Status(logx.StatusWaiting, "⏳ Rescheduled for %s (%s)", strings.TrimSpace(cur.Broadcast.SendAt), b.env.Timezone)
		case "broadcast.message":
			if err := b.job.SetText(cur.Broadcast.Message); err != nil {
				b.log.Warn("message change rejected", logx.Err(err))
			}
		case "logging":
			b.logs.Apply(cur.Log())
		default:
			b.log.Warn("config change needs a restart to take effect", logx.String("setting", name))
		}
	}
}
