package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"timerbot/internal/config"
	"timerbot/internal/eventbus"
	"timerbot/internal/notifier"
	"timerbot/internal/observability/debugsrv"
	"timerbot/internal/reminder"
	rtsup "timerbot/internal/runtime/supervisor"
	"timerbot/internal/storage"
	"timerbot/internal/task/scheduler"
	kit "timerbot/internal/transport"
	telegram "timerbot/internal/transport/telegram/adapter"
	"timerbot/internal/transport/telegram/router"
	logx "timerbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	adapter *telegram.Adapter
	notif   *notifier.Service

	cmds     *reminder.Commands
	sched    *reminder.Scheduler
	delivery *reminder.Delivery
	router   *router.Router
	cron     *scheduler.Service
	debug    *debugsrv.Server

	updates chan kit.Update
	started time.Time
}

// NewApp loads the config at cfgPath (with environment overrides) and wires
// every component. Nothing runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetOverlay(config.ApplyEnv)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// Apply warns when the Telegram sink is enabled without a target, so
	// bootstrap with it off, set the target, then apply the real config.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	if id := groupLogTarget(cfg); id != 0 {
		logSvc.SetTelegramTarget(id, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus)

	cmds := reminder.NewCommands(cfg.Reminders.QueueSizeOrDefault())
	delivery := reminder.NewDelivery(notif, mapReactions(cfg.Reminders.Reactions))
	sched := reminder.New(cmds, reminder.NewActiveSet(), delivery, log.With(logx.String("comp", "reminder")), bus)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		notif:    notif,
		cmds:     cmds,
		sched:    sched,
		delivery: delivery,
		cron:     scheduler.New(cfg.Reminders.Location(), log.With(logx.String("comp", "cron"))),
		updates:  make(chan kit.Update, 256),
	}
	a.debug = debugsrv.New(debugsrv.Config{}, log.With(logx.String("comp", "debug")),
		func() any { return a.snapshot() },
		a.healthErr,
	)
	a.router = router.New(log.With(logx.String("comp", "router")), cmds, notif,
		func() string { return renderStatus(a.snapshot()) },
		cfg.Reminders.WorkersOrDefault(), 256, mapRouterOptions(cfg, ad.Username()))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		_, err := mapDebugConfig(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.notif.Start(a.sup.Context())

	a.sup.Go("reminder.scheduler", a.sched.Run)
	a.sup.Go("reminder.audit", func(c context.Context) error {
		return reminder.RunAudit(c, a.bus, a.store, a.log.With(logx.String("comp", "audit")))
	})
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if err := a.setStatusJob(a.cfgm.Get()); err != nil {
		return err
	}
	a.cron.Start(a.sup.Context())

	dcfg, err := mapDebugConfig(a.cfgm.Get())
	if err != nil {
		return err
	}
	a.debug.Reconfigure(a.sup.Context(), dcfg)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	a.log.Info("app started",
		logx.String("bot", a.adapter.Username()),
		logx.Int("queue_cap", a.cmds.Cap()),
	)
	return nil
}

// healthErr backs /healthz: unhealthy once the supervisor failed or the
// scheduler loop is gone.
func (a *App) healthErr() error {
	if a.sup != nil {
		if err := a.sup.Err(); err != nil {
			return err
		}
	}
	if !a.started.IsZero() && !a.sched.Stats().Running {
		return errors.New("reminder scheduler not running")
	}
	return nil
}

func (a *App) setStatusJob(cfg *config.Config) error {
	return a.cron.Set(scheduler.Job{
		Name:     statusJobName,
		Schedule: strings.TrimSpace(cfg.Reminders.StatusCron),
		Timeout:  30 * time.Second,
		Run:      a.runStatusJob,
	})
}

// applyConfig pushes the hot-reloadable parts of newCfg into the running
// components. queue_size, timezone and storage need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	if config.StorageChanged(oldCfg, newCfg) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if oldCfg.Reminders.QueueSize != newCfg.Reminders.QueueSize {
		a.log.Warn("reminders.queue_size changed; restart required for changes to take effect")
	}
	if oldCfg.Reminders.Timezone != newCfg.Reminders.Timezone {
		a.log.Warn("reminders.timezone changed; restart required for changes to take effect")
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		a.log.Warn("telegram.token changed; restart required for changes to take effect")
	}

	// Target first so Apply doesn't warn when the Telegram sink is enabled.
	a.logs.SetTelegramTarget(groupLogTarget(newCfg), newCfg.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogConfig(newCfg))

	a.router.SetOptions(mapRouterOptions(newCfg, a.adapter.Username()))
	a.delivery.SetReactions(mapReactions(newCfg.Reminders.Reactions))

	if err := a.setStatusJob(newCfg); err != nil {
		a.log.Warn("invalid reminders.status_cron; keeping previous", logx.Err(err))
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case wasEnabled && !ncfg.Enabled:
			a.log.Warn("notifier disabled via config; reminders will not be delivered")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(a.sup.Context())
		}
	}

	if dcfg, err := mapDebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(a.sup.Context(), dcfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Closing intake lets the scheduler see the terminal signal; pending
	// reminders are dropped, nothing is persisted.
	a.cmds.Close()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("cron", 2*time.Second, func(c context.Context) error { a.cron.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("debug", 1*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	st := a.sched.Stats()
	a.log.Info("stopped",
		logx.Int("dropped_reminders", st.Scheduled),
		logx.Uint64("fired", st.Fired),
	)
	return a.logs.Close()
}
