// Pulu is a voice-based personal assistant backend.
//
// It relays live audio conversations between a browser client and the
// Gemini Live endpoint, executes the model's tool calls (alarms, timers,
// profile and memory edits) against local storage, and runs a background
// scheduler that rings due alarms into every connected session.
//
// Usage:
//
//	pulu serve               Start the server
//	pulu version             Print version and build information
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]); the Gemini API key
// may come from a .env file or the environment.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulu-ai/pulu/internal/buildinfo"
	"github.com/pulu-ai/pulu/internal/config"
	"github.com/pulu-ai/pulu/internal/gemini"
	"github.com/pulu-ai/pulu/internal/httpapi"
	"github.com/pulu-ai/pulu/internal/mqtt"
	"github.com/pulu-ai/pulu/internal/relay"
	"github.com/pulu-ai/pulu/internal/scheduler"
	"github.com/pulu-ai/pulu/internal/store"
	"github.com/pulu-ai/pulu/internal/tools"
)

// main constructs the OS-level environment and delegates to [run], which
// keeps os.Exit and os.Args out of the application logic so the full
// lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand — the flag
// package's global state gets in the way of parallel tests, and the
// argument surface here is two subcommands and one flag.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	command := "serve"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("-config requires a path argument")
			}
			i++
			configPath = args[i]
		case "serve", "version":
			command = args[i]
		default:
			return fmt.Errorf("unknown argument %q", args[i])
		}
	}

	if command == "version" {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting", "build", buildinfo.String(), "config", path)

	return serve(ctx, logger, cfg)
}

// serve wires the components together and blocks until shutdown.
func serve(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry := relay.NewRegistry(logger)
	toolReg := tools.NewRegistry(st, cfg.UserID, logger)

	dialer := gemini.NewDialer(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		Host:           cfg.Gemini.Host,
		ConnectTimeout: cfg.Gemini.ConnectTimeout(),
	}, logger)

	dial := func(ctx context.Context) (relay.Transport, error) {
		return dialer.Dial(ctx)
	}
	rl := relay.New(logger, st, toolReg, dial, cfg.Gemini.Model, cfg.UserID)

	sched := scheduler.New(logger, st, registry)
	sched.SetInterval(cfg.Scheduler.Interval())

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher = mqtt.New(cfg.MQTT, logger)
		if err := publisher.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt publisher: %w", err)
		}
		sched.SetEvents(publisher)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	server := httpapi.New(logger, cfg.Listen.Addr(), st, rl, registry, cfg.UserID)
	err = server.Start(ctx)

	cancel()
	wg.Wait()

	if publisher != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if serr := publisher.Stop(stopCtx); serr != nil {
			logger.Warn("mqtt shutdown", "error", serr)
		}
	}

	return err
}
