package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fractal-lba/nlueval/internal/cache"
	"github.com/fractal-lba/nlueval/internal/driver"
	"github.com/fractal-lba/nlueval/internal/eval"
	"github.com/fractal-lba/nlueval/internal/provider"
)

// testCmd runs expected utterances through an NLU endpoint
func testCmd() *cobra.Command {
	var (
		utterancesPath string
		outputPath     string
		endpoint       string
		headers        map[string]string
		timeout        time.Duration
		concurrency    int
		qps            float64
		maxRetries     uint
		cacheSize      int
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Query an NLU endpoint with every expected utterance",
		Long: `Sends each expected utterance (its text, or the transcription of its
speechFile) to the provider and writes the labeled utterances the model
returned, in input order, ready for 'nlu-eval compare --actual'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			utterances, err := eval.LoadUtterances(utterancesPath)
			if err != nil {
				return err
			}

			client, err := provider.NewHTTPClient(provider.HTTPConfig{
				Endpoint: endpoint,
				Headers:  headers,
				Timeout:  timeout,
			})
			if err != nil {
				return err
			}

			retryCfg := provider.DefaultRetryConfig()
			retryCfg.MaxTries = maxRetries + 1
			retryCfg.Logger = slog.Default()

			transcriptions, err := cache.NewTranscriptions(cacheSize, 0, nil)
			if err != nil {
				return fmt.Errorf("failed to create transcription cache: %w", err)
			}

			d := driver.New(
				provider.WithRetry(client, retryCfg),
				driver.WithConcurrency(concurrency),
				driver.WithRateLimit(qps, concurrency),
				driver.WithTranscriber(provider.WithTranscriberRetry(client, retryCfg), transcriptions),
				driver.WithLogger(slog.Default()),
			)

			start := time.Now()
			results, err := d.Run(cmd.Context(), utterances)
			if err != nil {
				return fmt.Errorf("test run failed: %w", err)
			}

			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}

			stats := transcriptions.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "tested %d utterances in %v (transcription cache hit rate %.2f)\nwrote %s\n",
				len(results), time.Since(start).Round(time.Millisecond), stats.HitRate, outputPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&utterancesPath, "utterances", "", "Expected utterances (JSON array)")
	flags.StringVar(&outputPath, "output", "actual.json", "Where to write the actual utterances")
	flags.StringVar(&endpoint, "endpoint", "", "NLU provider base URL")
	flags.StringToStringVar(&headers, "header", nil, "Extra request headers, e.g. --header Ocp-Apim-Subscription-Key=...")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	flags.IntVar(&concurrency, "concurrency", driver.DefaultConcurrency, "Parallel provider queries")
	flags.Float64Var(&qps, "qps", 0, "Maximum queries per second; 0 is unlimited")
	flags.UintVar(&maxRetries, "max-retries", provider.DefaultMaxTries-1, "Retries per query for rate-limited, conflicting or transient failures")
	flags.IntVar(&cacheSize, "transcription-cache", 4096, "Transcriptions kept in memory")
	cmd.MarkFlagRequired("utterances")
	cmd.MarkFlagRequired("endpoint")

	return cmd
}
