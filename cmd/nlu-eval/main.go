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

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fractal-lba/nlueval/internal/eval"
	"github.com/fractal-lba/nlueval/pkg/otel"
)

// Exit codes
const (
	exitFailure     = 1
	exitConfigError = 2
	exitRegressed   = 3
)

var (
	// Global flags
	logLevel     string
	logFormat    string
	otelEndpoint string

	tracerProvider *sdktrace.TracerProvider
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nlu-eval",
		Short: "Regression testing for NLU models",
		Long: `Compares the utterances an NLU model produced against a human-labeled
reference set and reports precision, recall, F1 and accuracy per intent and
per entity type, optionally against a stored baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(stderr); err != nil {
				return err
			}
			if otelEndpoint != "" {
				cfg := otel.DefaultConfig("nlu-eval")
				cfg.CollectorEndpoint = otelEndpoint
				tp, err := otel.InitTracer(cmd.Context(), cfg)
				if err != nil {
					return fmt.Errorf("failed to init tracing: %w", err)
				}
				tracerProvider = tp
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return otel.Shutdown(context.Background(), tracerProvider)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP gRPC collector endpoint; tracing is off when empty")

	// Subcommands
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(baselineCmd())

	return rootCmd
}

func setupLogging(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch logFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid --log-format %q", logFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, eval.ErrConfiguration):
		return exitConfigError
	case errors.Is(err, eval.ErrRegressionsDetected):
		return exitRegressed
	default:
		return exitFailure
	}
}
