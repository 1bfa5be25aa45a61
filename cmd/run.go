package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/parley/internal/bot"
	"github.com/nextlevelbuilder/parley/internal/bus"
	"github.com/nextlevelbuilder/parley/internal/channels/discord"
	"github.com/nextlevelbuilder/parley/internal/commands"
	"github.com/nextlevelbuilder/parley/internal/config"
	"github.com/nextlevelbuilder/parley/internal/history"
	"github.com/nextlevelbuilder/parley/internal/providers"
	"github.com/nextlevelbuilder/parley/internal/tracing"
)

const (
	dedupeTTL     = 20 * time.Minute
	dedupeMaxSize = 5000
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve messages",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		slog.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	store := history.NewStore(history.StoreConfig{
		DefaultSystemPrompt: cfg.History.DefaultSystemPrompt,
		DefaultProvider:     cfg.Providers.Default,
		AutoRespondDefault:  cfg.Discord.AutoRespond,
	})
	registry := providers.NewRegistry(cfg)

	mb := bus.New()
	dedupe, err := bus.NewDedupeCache(dedupeTTL, dedupeMaxSize)
	if err != nil {
		slog.Error("dedupe cache init failed", "error", err)
		os.Exit(1)
	}

	adapter, err := discord.NewAdapter(discord.AdapterOpts{
		Token:  cfg.Discord.Token,
		Bus:    mb,
		Dedupe: dedupe,
	})
	if err != nil {
		slog.Error("discord adapter init failed", "error", err)
		os.Exit(1)
	}

	loader := history.NewLoader(store, adapter, cfg.History.LockTimeout, cfg.History.MaxHistory)

	var budget *history.ContextBudget
	if cfg.Context.Enabled {
		budget = history.NewContextBudget(
			cfg.Context.WindowTokens, cfg.Context.BudgetPercent,
			cfg.Providers.OpenAI.MaxTokens)
	}

	engine := bot.NewEngine(bot.EngineConfig{
		Store:      store,
		Loader:     loader,
		Dispatcher: commands.NewDispatcher(store, loader),
		Registry:   registry,
		Budget:     budget,
		Usage:      providers.NewUsageAccumulator(),
		Bus:        mb,
		Gateway:    adapter,
		BotPrefix:  cfg.Discord.BotPrefix,
		MaxHistory: cfg.History.MaxHistory,
	})

	if watcher, err := config.NewWatcher(cfgPath); err == nil {
		watcher.OnChange(func(next *config.Config) {
			// Connection and provider wiring need a restart; only the
			// behavioral knobs are applied live.
			setupLogging(next.LogLevel)
			engine.SetBotPrefix(next.Discord.BotPrefix)
			store.SetAutoRespondDefault(next.Discord.AutoRespond)
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	if err := adapter.Open(); err != nil {
		slog.Error("discord connection failed", "error", err)
		os.Exit(1)
	}
	defer adapter.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return adapter.Run(ctx) })

	slog.Info("parley running", "providers", registry.Names(),
		"auto_respond_default", cfg.Discord.AutoRespond,
		"max_history", cfg.History.MaxHistory)

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
