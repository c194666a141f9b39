package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/fractal-lba/nlueval/internal/eval"
)

// Source resolves a run's baseline from a Store: the record for BuildID
// when set, otherwise the latest record for Label.
type Source struct {
	Store   Store
	BuildID string
	Label   string
	Timeout time.Duration // per lookup; zero means no extra deadline
}

// Baseline implements eval.BaselineSource.
func (s *Source) Baseline(ctx context.Context) (*eval.BaselineSnapshot, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var (
		rec *Record
		err error
	)
	if s.BuildID != "" {
		rec, err = s.Store.Get(ctx, s.BuildID)
	} else {
		rec, err = s.Store.Latest(ctx, s.Label)
	}
	if err != nil {
		return nil, fmt.Errorf("baseline lookup failed: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return rec.Snapshot(), nil
}

// Save stores result as the baseline for its run id.
func Save(ctx context.Context, store Store, result *eval.RunResult, ttl time.Duration) (*Record, error) {
	rec := NewRecord(result)
	if err := store.Put(ctx, rec, ttl); err != nil {
		return nil, fmt.Errorf("failed to save baseline %s: %w", rec.ID, err)
	}
	return rec, nil
}
