// Command misp queries a MISP server from the command line.
//
//	misp version
//	misp event <id|uuid>
//	misp search [-org ORG] [-info TEXT | -exact-info TEXT] [-after DATE] [-before DATE] [-limit N] [-csv]
//	misp sync [-info TEXT] [-after DATE] [-limit N]
//
// Connection settings come from the environment (MISP_ROOT_URL,
// MISP_AUTH_TOKEN, ...) or a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/misp"
	"github.com/ashita-ai/misp/internal/config"
	"github.com/ashita-ai/misp/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

const usage = `usage: misp <command> [flags]

commands:
  version            print the server version and your permissions
  event <id|uuid>    print one event
  search [flags]     search events (see misp search -h)
  sync [flags]       copy to_ids attributes into the local store
`

var errUsage = errors.New("usage")

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	level := slog.LevelInfo
	if v := os.Getenv("MISP_LOG_LEVEL"); v != "" {
		if l, err := config.ParseLevel(v); err == nil {
			level = l
		}
	}
	// Logs go to stderr; stdout carries command output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	client, err := misp.New(cfg.RootURL, cfg.AuthKey,
		misp.WithLogger(logger),
		misp.WithTimeout(cfg.Timeout),
		misp.WithUserAgent(cfg.UserAgent),
		misp.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		misp.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	if err != nil {
		return err
	}

	logger.Debug("misp starting", "version", version, "root_url", cfg.RootURL, "command", args[0])
	return dispatch(ctx, client, cfg, args, stdout, logger)
}

func dispatch(ctx context.Context, client *misp.Client, cfg config.Config, args []string, stdout io.Writer, logger *slog.Logger) error {
	switch args[0] {
	case "version":
		return cmdVersion(ctx, client, stdout)
	case "event":
		return cmdEvent(ctx, client, args[1:], stdout)
	case "search":
		return cmdSearch(ctx, client, args[1:], stdout)
	case "sync":
		return cmdSync(ctx, client, cfg, args[1:], stdout, logger)
	default:
		return errUsage
	}
}
