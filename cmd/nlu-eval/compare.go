package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fractal-lba/nlueval/internal/baseline"
	"github.com/fractal-lba/nlueval/internal/eval"
)

// compareCmd compares expected against actual utterances
func compareCmd() *cobra.Command {
	var (
		configFile   string
		saveBaseline bool
		store        storeFlags
	)
	cfg := eval.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare actual against expected utterances and report metrics",
		Long: `Pairs the expected and actual utterance files index by index, classifies
intents, texts and entities, and writes metadata.json, statistics.json and
(when a baseline exists) regressions.json to the output folder.

With --strict, any metric that dropped below its baseline by more than the
tolerance makes the command fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				fileCfg, err := eval.LoadConfig(configFile)
				if err != nil {
					return err
				}
				cfg = mergeConfig(cmd, fileCfg, cfg)
			}

			opts := []eval.RunnerOption{eval.WithLogger(slog.Default())}

			var st baseline.Store
			if store.enabled() {
				var err error
				st, err = store.open()
				if err != nil {
					slog.Warn("baseline store unavailable", "backend", store.backend, "error", err)
				} else {
					defer st.Close()
					opts = append(opts, eval.WithBaselineSource(&baseline.Source{Store: st, Label: cfg.TestLabel}))
				}
			}

			result, err := eval.NewRunner(opts...).Run(cmd.Context(), cfg)
			if result == nil {
				return err
			}
			if werr := eval.WriteSummary(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}

			if saveBaseline {
				if errors.Is(err, eval.ErrRegressionsDetected) {
					// a regressed run must not become the label's latest baseline
					fmt.Fprintln(cmd.OutOrStdout(), "\nbaseline not saved: regressions detected")
					return err
				}
				if st == nil {
					return errors.Join(err, fmt.Errorf("--save-baseline requires a reachable --baseline-store"))
				}
				rec, serr := baseline.Save(cmd.Context(), st, result, store.ttl)
				if serr != nil {
					return errors.Join(err, serr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nbaseline saved as %s\n", rec.ID)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML config file; explicit flags override it")
	flags.StringVar(&cfg.ExpectedPath, "expected", "", "Expected utterances (JSON array)")
	flags.StringVar(&cfg.ActualPath, "actual", "", "Actual utterances (JSON array)")
	flags.StringVar(&cfg.TestLabel, "test-label", "", "Label for this run, e.g. text or speech")
	flags.StringVar(&cfg.OutputFolder, "output-folder", cfg.OutputFolder, "Folder for metadata.json, statistics.json and regressions.json")
	flags.StringVar(&cfg.BaselinePath, "baseline", "", "Baseline statistics.json; takes precedence over --baseline-store")
	flags.Float64Var(&cfg.Tolerance, "tolerance", cfg.Tolerance, "Allowed absolute metric drop before a regression is reported")
	flags.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail when any metric regressed")
	flags.BoolVar(&cfg.UnitTest, "unit-test", cfg.UnitTest, "Score only explicit expectations (drop false positives and true negatives)")
	flags.StringVar(&cfg.BuildID, "build-id", "", "Run identifier used when saving the baseline; generated when empty")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Classification shards")
	flags.BoolVar(&saveBaseline, "save-baseline", false, "Store this run's statistics as a baseline; skipped when --strict finds regressions")
	store.register(cmd, "")

	return cmd
}

// mergeConfig layers explicitly set flags over the file configuration.
func mergeConfig(cmd *cobra.Command, file, flags eval.Config) eval.Config {
	out := file
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("expected", func() { out.ExpectedPath = flags.ExpectedPath })
	set("actual", func() { out.ActualPath = flags.ActualPath })
	set("test-label", func() { out.TestLabel = flags.TestLabel })
	set("output-folder", func() { out.OutputFolder = flags.OutputFolder })
	set("baseline", func() { out.BaselinePath = flags.BaselinePath })
	set("tolerance", func() { out.Tolerance = flags.Tolerance })
	set("strict", func() { out.Strict = flags.Strict })
	set("unit-test", func() { out.UnitTest = flags.UnitTest })
	set("build-id", func() { out.BuildID = flags.BuildID })
	set("concurrency", func() { out.Concurrency = flags.Concurrency })
	return out
}
