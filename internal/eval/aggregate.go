package eval

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// AggregateOptions configures Aggregate.
type AggregateOptions struct {
	Classify    ClassifyOptions
	Concurrency int // Number of shards; <= 0 means runtime.NumCPU()
	Logger      *slog.Logger
}

// Aggregate classifies every TestCase and accumulates the outcomes.
//
// Cases are split into contiguous shards classified concurrently, each into
// its own Statistics; the partials are merged once every shard finished.
// A case's outcomes are committed only after it is fully classified. On
// cancellation Aggregate returns ctx.Err() and no statistics.
func Aggregate(ctx context.Context, cases []TestCase, opts AggregateOptions) ([]CaseRecord, *Statistics, []Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shards := opts.Concurrency
	if shards <= 0 {
		shards = runtime.NumCPU()
	}
	if shards > len(cases) {
		shards = len(cases)
	}

	records := make([]CaseRecord, len(cases))
	partials := make([]*Statistics, shards)
	warnings := make([][]Warning, shards)

	g, gctx := errgroup.WithContext(ctx)
	for shard := 0; shard < shards; shard++ {
		lo := shard * len(cases) / shards
		hi := (shard + 1) * len(cases) / shards

		g.Go(func() error {
			local := NewStatistics()
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				tc := &cases[i]
				result := Classify(tc, opts.Classify)

				local.RecordResult(result)
				records[i] = result.Record(tc)
				warnings[shard] = append(warnings[shard], result.Warnings...)
			}
			partials[shard] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	stats := NewStatistics()
	var all []Warning
	for shard := range partials {
		stats.Merge(partials[shard])
		all = append(all, warnings[shard]...)
	}

	for _, w := range all {
		logger.Warn("classification ambiguity",
			"index", w.Index,
			"entity_type", w.EntityType,
			"message", w.Message,
		)
	}

	return records, stats, all, nil
}
