// Package app assembles the task bot from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/app/commands"
	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/dialog"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/reconcile"
	"github.com/m3rciful/taskbot/core/router"
	"github.com/m3rciful/taskbot/core/scheduler"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/telegram"
	"github.com/m3rciful/taskbot/core/telegram/sender"
	"github.com/m3rciful/taskbot/core/transport"
)

// Core is the transport-independent part of the bot.
type Core struct {
	Registry *command.Registry
	States   *dialog.Store
	Router   *router.Router
}

// NewCore wires commands, dialog states and the router over st. Replies go to out.
func NewCore(cfg *config.Config, st storage.Storage, out transport.Sender, botName string) (*Core, error) {
	loc := time.UTC
	if cfg.Tasks.Timezone != "" {
		l, err := time.LoadLocation(cfg.Tasks.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		loc = l
	}

	states := dialog.NewStore(st.DialogStates())
	reg := command.NewRegistry()
	if err := commands.Register(reg, commands.Deps{
		Users:    st.Users(),
		Tasks:    st.Tasks(),
		States:   states,
		Sender:   out,
		PageSize: cfg.Tasks.PageSize,
		Location: loc,
	}); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	notices := command.NewNotices(out)
	r := router.New(router.Options{
		BotName:    botName,
		Dispatcher: command.NewDispatcher(reg, notices),
		Notifier:   notices,
		Reconciler: reconcile.New(st.Users(), st.Chats()),
		States:     states,
		Tasks:      st.Tasks(),
		Sender:     out,
	})
	return &Core{Registry: reg, States: states, Router: r}, nil
}

// App is the runnable Telegram bot.
type App struct {
	cfg     *config.Config
	storage storage.Storage
	bot     *tele.Bot
	disp    *sender.Dispatcher
	core    *Core
}

// New connects to Telegram and wires the bot over st.
func New(ctx context.Context, cfg *config.Config, st storage.Storage) (*App, error) {
	bot, err := telegram.NewBot(ctx, cfg)
	if err != nil {
		return nil, err
	}
	disp := sender.NewDispatcher(sender.Options{
		QueueSize:    cfg.Sender.QueueSize,
		Workers:      cfg.Sender.Workers,
		MaxRetries:   cfg.Sender.MaxRetries,
		RetryBackoff: cfg.Sender.RetryBackoff,
		PerSecond:    cfg.Sender.PerSecond,
		Burst:        cfg.Sender.Burst,
	})
	core, err := NewCore(cfg, st, telegram.NewSender(bot, disp), telegram.BotName(cfg, bot))
	if err != nil {
		disp.Close()
		return nil, err
	}
	return &App{cfg: cfg, storage: st, bot: bot, disp: disp, core: core}, nil
}

// Run polls Telegram and runs maintenance jobs until ctx is done, then releases
// the sender pool and the storage.
func (a *App) Run(ctx context.Context) error {
	started := time.Now()
	defer func() {
		a.disp.Close()
		if err := a.storage.Close(); err != nil {
			logger.Error(ctx, "app", "storage.close_failed", slog.String("err", err.Error()))
		}
	}()

	sched, err := scheduler.New(ctx)
	if err != nil {
		return err
	}
	if err := sched.SchedulePurge(a.core.States, a.cfg.Dialog.StateTTL, a.cfg.Dialog.PurgeCron); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Stop()
	})
	g.Go(func() error {
		err := telegram.Run(gctx, a.bot, telegram.RunOptions{
			Config:      a.cfg,
			Commands:    a.core.Registry,
			Middlewares: telegram.DefaultMiddlewares(a.cfg, nil),
			Routes:      telegram.Routes(a.core.Router),
		})
		if err == nil && gctx.Err() == nil {
			err = errors.New("telegram: polling stopped unexpectedly")
		}
		return err
	})

	logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", logger.RoundMS(time.Since(started))))
	err = g.Wait()
	logger.Info(ctx, "app", "shutdown")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
