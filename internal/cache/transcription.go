package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fractal-lba/nlueval/internal/metrics"
)

// TranscribeFunc produces the transcription of one recording.
type TranscribeFunc func(ctx context.Context, recordingID string) (string, error)

// Transcriptions caches speech-to-text results keyed by recording id.
//
// Concurrent lookups of the same uncached recording share one call to the
// transcriber. Failed transcriptions are not cached.
type Transcriptions struct {
	lru     *LRU[string, string]
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewTranscriptions creates a transcription cache. m may be nil.
func NewTranscriptions(size int, ttl time.Duration, m *metrics.Metrics) (*Transcriptions, error) {
	c, err := NewLRU[string, string](size, ttl)
	if err != nil {
		return nil, err
	}
	return &Transcriptions{lru: c, metrics: m}, nil
}

// Get returns the transcription of recordingID, calling transcribe on a miss.
// The bool reports whether the result came from the cache.
func (t *Transcriptions) Get(ctx context.Context, recordingID string, transcribe TranscribeFunc) (string, bool, error) {
	if text, ok := t.lru.Get(recordingID); ok {
		t.count("hit")
		return text, true, nil
	}
	t.count("miss")

	v, err, _ := t.group.Do(recordingID, func() (any, error) {
		if text, ok := t.lru.Get(recordingID); ok {
			return text, nil
		}
		text, err := transcribe(ctx, recordingID)
		if err != nil {
			return "", err
		}
		t.lru.Set(recordingID, text)
		return text, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// Stats exposes the underlying cache counters.
func (t *Transcriptions) Stats() Stats {
	return t.lru.Stats()
}

func (t *Transcriptions) count(result string) {
	if t.metrics != nil {
		t.metrics.TranscriptionCache.WithLabelValues(result).Inc()
	}
}
