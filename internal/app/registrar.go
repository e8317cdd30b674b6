package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"sheetcast/internal/config"
	"sheetcast/internal/registrar"
	rtsup "sheetcast/internal/runtime/supervisor"
	kit "sheetcast/internal/transport"
	telegram "sheetcast/internal/transport/telegram/adapter"
	"sheetcast/internal/transport/telegram/router"
	logx "sheetcast/pkg/logx"
)

// Registrar is the long-running /start bot.
type Registrar struct {
	log     logx.Logger
	logs    *logx.Service
	adapter *telegram.Adapter
	router  *router.Router
	updates chan kit.Update
}

func NewRegistrar(opts Options) (*Registrar, error) {
	st, err := loadSettings(opts, config.EnvBotToken)
	if err != nil {
		return nil, err
	}
	pollTimeout, err := st.file.PollTimeout()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(st.file.Logging.Level)
	ad, err := telegram.New(telegram.Config{
		Token:       st.env.BotToken,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(st.file.Log(), ad)
	log = log.With(logx.String("comp", "app"))

	r := router.New(log, ad, 30*time.Second)
	if err := r.Register(registrar.New(log).Commands()...); err != nil {
		closeLogs(logs, log)
		return nil, err
	}

	return &Registrar{
		log:     log,
		logs:    logs,
		adapter: ad,
		router:  r,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Run polls Telegram until ctx is cancelled. A cancelled ctx is a clean exit.
func (a *Registrar) Run(ctx context.Context) error {
	defer closeLogs(a.logs, a.log)

	sup := rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	if err := a.adapter.Start(sup.Context(), a.updates); err != nil {
		sup.Cancel()
		return err
	}

	sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	sup.Go0("commands.menu", func(c context.Context) {
		if err := a.adapter.SetCommands(c, a.router.Commands()); err != nil {
			a.log.Warn("menu commands update failed", logx.Err(err))
		}
	})

	logx.Status(logx.StatusInfo, "🤖 Bot running. Ask users to press /start")
	a.log.Info("registrar started", logx.String("bot", a.adapter.Username()))
	notifySystemd(a.log, daemon.SdNotifyReady)

	<-sup.Context().Done()
	notifySystemd(a.log, daemon.SdNotifyStopping)
	a.log.Info("registrar stopping", logx.Int64("goroutines", sup.Active()))

	sctx, cancel := stopContext()
	defer cancel()
	_ = a.adapter.Stop(sctx)
	err := sup.Stop(sctx)
	if err != nil && !isShutdown(err) {
		return err
	}
	return nil
}

// notifySystemd reports state to systemd. It is a no-op outside a
// Type=notify unit.
func notifySystemd(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
