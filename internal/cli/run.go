package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/config"
	"github.com/mtessier/reactsync/internal/engine"
	"github.com/mtessier/reactsync/internal/gateway"
	"github.com/mtessier/reactsync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// TokenGenerator allows overriding the event token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	TokenGenerator engine.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the synchronization engine",
		Long: `Start the reaction-to-role synchronization engine.

The engine restores its binding and link configuration from the SQLite
database (creating it if it doesn't exist), subscribes to the gateway
event stream, and starts the single-writer mutation worker.

Example:
  reactsync run --config ./reactsync.yaml
  reactsync run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cfg.LogLevel, opts.Verbose)

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	client := gateway.NewClient(cfg.APIURL, cfg.Token)
	eng := engine.New(engine.Deps{
		Members:   client,
		Reactions: client,
		Resolver:  client,
		Marker:    client,
		Persister: st,
		Self:      chat.MemberID(cfg.SelfID),
	}, engine.WithRate(cfg.MaxProcessedPerSecond))

	tokens := opts.TokenGenerator
	if tokens == nil {
		tokens = engine.UUIDv7Generator{}
	}
	sub := gateway.NewSubscriber(cfg.GatewayURL, cfg.Token, eng, tokens)

	// Use command's context if available (for testing), otherwise create
	// one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := eng.Restore(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to restore configuration", err)
	}

	slog.Info("engine starting", "db", cfg.Database, "gateway", cfg.GatewayURL)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Listening for reactions...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	errCh := make(chan error, 2)
	go func() { errCh <- eng.Run(ctx) }()
	go func() { errCh <- sub.Listen(ctx) }()

	err = <-errCh
	cancel()
	eng.Stop()
	sub.Close()
	<-errCh // wait for the other half to wind down

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// setupLogging configures the default slog handler from the configured
// level, with --verbose forcing debug.
func setupLogging(level string, verbose bool) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
