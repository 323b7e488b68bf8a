// Command bibliod is the main entry point for the bibliographic discovery
// service's HTTP/WebSocket server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/hagaybar/biblioplan/internal/app"
	"github.com/hagaybar/biblioplan/internal/config"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/provider/llm/anyllm"
	"github.com/hagaybar/biblioplan/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bibliod: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bibliod: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("bibliod starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers the two NL provider factories bibliod
// ships with: a direct OpenAI client and the any-llm-go universal backend
// (used for the fallback slot, or as the primary when pointed at a
// different model family).
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterNL("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterNL("anyllm", func(entry config.ProviderEntry) (llm.Provider, error) {
		backend, _ := entry.Options["backend"].(string)
		if backend == "" {
			backend = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(backend, entry.Model, opts...)
	})
}

// buildProviders instantiates the primary and optional fallback NL providers
// named in cfg using reg.
func buildProviders(cfg *config.Config, reg *config.Registry) (app.Providers, error) {
	var ps app.Providers

	if cfg.Providers.NL.Name != "" {
		p, err := reg.CreateNL(cfg.Providers.NL)
		if err != nil {
			return ps, fmt.Errorf("create nl provider %q: %w", cfg.Providers.NL.Name, err)
		}
		ps.NL = p
		slog.Info("nl provider created", "name", cfg.Providers.NL.Name, "model", cfg.Providers.NL.Model)
	}

	if cfg.Planner.FallbackNL.Name != "" {
		p, err := reg.CreateNL(cfg.Planner.FallbackNL)
		if err != nil {
			return ps, fmt.Errorf("create fallback nl provider %q: %w", cfg.Planner.FallbackNL.Name, err)
		}
		ps.FallbackNL = p
		slog.Info("fallback nl provider created", "name", cfg.Planner.FallbackNL.Name, "model", cfg.Planner.FallbackNL.Model)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     bibliod — startup summary          ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("NL", cfg.Providers.NL.Name, cfg.Providers.NL.Model)
	printProvider("Fallback NL", cfg.Planner.FallbackNL.Name, cfg.Planner.FallbackNL.Model)
	fmt.Printf("║  Enrichment sources : %-16d ║\n", len(cfg.Enrichment.Sources))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr        : %-16s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 16 {
		value = value[:13] + "…"
	}
	fmt.Printf("║  %-18s : %-16s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
