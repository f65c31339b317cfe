package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/ocalt/internal/agentcli"
	"github.com/aatumaykin/ocalt/internal/channels"
	"github.com/aatumaykin/ocalt/internal/channels/discord"
	"github.com/aatumaykin/ocalt/internal/channels/telegram"
	"github.com/aatumaykin/ocalt/internal/cleanup"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/relay"
	"github.com/aatumaykin/ocalt/internal/runner"
	"github.com/aatumaykin/ocalt/internal/scheduler"
	"github.com/aatumaykin/ocalt/internal/state"
	"github.com/aatumaykin/ocalt/internal/tmux"
	"github.com/aatumaykin/ocalt/internal/workspace"
)

// Initialize builds every component. It is idempotent.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}
	cfg := a.config

	// 1. Метрики
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New("ocalt")
	}

	// 2. Рабочие директории агентов
	var provisionErrs []error
	for name, err := range workspace.NewProvisioner(a.logger).EnsureAll(cfg.Agents) {
		provisionErrs = append(provisionErrs, fmt.Errorf("agent %s: %w", name, err))
	}
	if err := errors.Join(provisionErrs...); err != nil {
		return fmt.Errorf("failed to provision workspaces: %w", err)
	}

	// 3. Журнал запусков
	a.store = state.NewFileStore(cfg.Scheduler.StateFile, a.logger)
	if _, err := a.store.Load(); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	// 4. Drop folder и очистка
	var dropFolder *relay.DropFolder
	var pruner cleanup.Pruner
	if cfg.Relay.Enabled {
		dropFolder = relay.New(cfg.Relay.Dir, a.logger)
		pruner = dropFolder
	}
	a.cleanup = cleanup.NewRunner(cleanup.Config{
		LogsDir:        cfg.Scheduler.LogsDir,
		LogRetention:   time.Duration(cfg.Scheduler.LogRetentionDays) * 24 * time.Hour,
		RelayRetention: time.Duration(cfg.Relay.RetentionDays) * 24 * time.Hour,
	}, pruner, a.logger)

	// 5. Каналы
	invoker := agentcli.NewInvoker(agentcli.NewBuilder(cfg.CLI), a.logger)
	notifiers := map[string]runner.Notifier{}
	if cfg.Channels.Telegram.Enabled {
		conn, err := a.buildTelegram(invoker)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram: %w", err)
		}
		a.telegram = conn
		notifiers[telegram.ChannelName] = conn
	}
	if cfg.Channels.Discord.Enabled {
		conn, err := a.buildDiscord(ctx, invoker)
		if err != nil {
			return fmt.Errorf("failed to initialize discord: %w", err)
		}
		a.discord = conn
		notifiers[discord.ChannelName] = conn
	}

	// 6. Раннер и планировщик
	if a.windows == nil {
		a.windows = tmux.New(cfg.Scheduler.TmuxSession)
	}
	a.runner = runner.New(runner.Options{
		Config:    cfg,
		Store:     a.store,
		Windows:   a.windows,
		Notifiers: notifiers,
		Relay:     dropFolder,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	a.scheduler = scheduler.New(a.runner, a.logger)

	a.initialized = true
	return nil
}

func (a *App) buildTelegram(invoker channels.AgentInvoker) (*telegram.Connector, error) {
	tc := a.config.Channels.Telegram

	bot, err := telegram.NewBot(tc.Token)
	if err != nil {
		return nil, err
	}
	routes, err := channels.LoadRoutingMap(tc.RoutingFile, tc.RoutingLimit)
	if err != nil {
		return nil, err
	}
	dispatcher := channels.NewDispatcher(telegram.ChannelName, tc.AllowedUsers, routes, a.config, invoker, a.metrics, a.logger)

	a.logger.Info("📱 telegram connector initialized",
		logger.Field{Key: "token", Value: config.MaskToken(tc.Token)},
		logger.Field{Key: "chat_id", Value: tc.ChatID})
	return telegram.New(tc, bot, routes, dispatcher, a.metrics, a.logger), nil
}

func (a *App) buildDiscord(ctx context.Context, invoker channels.AgentInvoker) (*discord.Connector, error) {
	dc := a.config.Channels.Discord

	rest := discord.NewClient(dc.APIBaseURL, dc.Token, dc.MessagesPerSecond, constants.DefaultSendTimeout)
	chmap, err := discord.LoadChannelMap(dc.ChannelMapFile)
	if err != nil {
		return nil, err
	}
	routes, err := channels.LoadRoutingMap(dc.RoutingFile, dc.RoutingLimit)
	if err != nil {
		return nil, err
	}
	dispatcher := channels.NewDispatcher(discord.ChannelName, dc.AllowedUsers, routes, a.config, invoker, a.metrics, a.logger)
	conn := discord.New(dc, rest, chmap, routes, dispatcher, a.metrics, a.logger)

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := conn.EnsureChannels(ensureCtx, a.config.AgentNames()); err != nil {
		return nil, err
	}

	a.logger.Info("💬 discord connector initialized", logger.Field{Key: "guild_id", Value: dc.GuildID})
	return conn, nil
}
