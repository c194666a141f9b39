package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractal-lba/nlueval/internal/api"
	"github.com/fractal-lba/nlueval/internal/cache"
	"github.com/fractal-lba/nlueval/internal/metrics"
	"github.com/fractal-lba/nlueval/internal/provider"
)

// echoProvider labels every utterance with an intent derived from its text
// and tracks peak concurrency.
type echoProvider struct {
	delay    time.Duration
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (p *echoProvider) Test(ctx context.Context, u api.Utterance) (api.Utterance, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return api.Utterance{}, ctx.Err()
	}

	if p.failOn != "" && u.Text == p.failOn {
		return api.Utterance{}, &provider.Error{Kind: provider.KindFatal, StatusCode: 400, Err: errors.New("bad utterance")}
	}
	return api.Utterance{Intent: api.String("intent:" + u.Text)}, nil
}

type countingTranscriber struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingTranscriber) Transcribe(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[id]++
	return "heard " + id, nil
}

func textUtterances(n int) []api.Utterance {
	out := make([]api.Utterance, n)
	for i := range out {
		out[i] = api.Utterance{Text: fmt.Sprintf("u%d", i)}
	}
	return out
}

func TestDriverPreservesOrderAndBoundsConcurrency(t *testing.T) {
	p := &echoProvider{delay: 5 * time.Millisecond}
	d := New(p, WithConcurrency(3))

	results, err := d.Run(context.Background(), textUtterances(20))
	require.NoError(t, err)
	require.Len(t, results, 20)

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("u%d", i), r.Text)
		assert.Equal(t, fmt.Sprintf("intent:u%d", i), *r.Intent)
	}
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
	assert.Equal(t, int32(20), p.calls.Load())
}

func TestDriverDefaultConcurrency(t *testing.T) {
	p := &echoProvider{delay: 5 * time.Millisecond}
	_, err := New(p).Run(context.Background(), textUtterances(12))
	require.NoError(t, err)
	assert.LessOrEqual(t, p.peak.Load(), int32(DefaultConcurrency))
}

func TestDriverStopsOnFailure(t *testing.T) {
	p := &echoProvider{delay: time.Millisecond, failOn: "u2"}
	results, err := New(p, WithConcurrency(1)).Run(context.Background(), textUtterances(10))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "utterance 2")
	assert.Equal(t, provider.KindFatal, provider.KindOf(err))

	require.Len(t, results, 10)
	assert.NotNil(t, results[0].Intent)
	assert.Nil(t, results[2].Intent, "failed slot is never written")
	assert.Less(t, p.calls.Load(), int32(10))
}

func TestDriverCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &echoProvider{delay: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := New(p, WithConcurrency(2)).Run(ctx, textUtterances(5))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
}

func TestDriverRateLimit(t *testing.T) {
	p := &echoProvider{}
	d := New(p, WithConcurrency(8), WithRateLimit(100, 1))

	start := time.Now()
	_, err := d.Run(context.Background(), textUtterances(6))
	require.NoError(t, err)

	// 6 queries at 100/s with burst 1 need at least 50ms
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestDriverTranscribesSpeechOncePerRecording(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	tc, err := cache.NewTranscriptions(64, 0, m)
	require.NoError(t, err)

	tr := &countingTranscriber{}
	p := &echoProvider{}
	d := New(p, WithConcurrency(1), WithTranscriber(tr, tc), WithMetrics(m))

	utterances := []api.Utterance{
		{Text: "book a flight", SpeechFile: "rec-1.wav"},
		{Text: "book a flight", SpeechFile: "rec-1.wav"},
		{Text: "hello", SpeechFile: "rec-2.wav"},
		{Text: "typed"},
	}

	results, err := d.Run(context.Background(), utterances)
	require.NoError(t, err)

	assert.Equal(t, "heard rec-1.wav", results[0].Text)
	assert.Equal(t, "intent:heard rec-1.wav", *results[1].Intent)
	assert.Equal(t, "rec-2.wav", results[2].SpeechFile)
	assert.Equal(t, "typed", results[3].Text)

	assert.Equal(t, map[string]int{"rec-1.wav": 1, "rec-2.wav": 1}, tr.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranscriptionCache.WithLabelValues("hit")))
}

func TestDriverSpeechWithoutTranscriber(t *testing.T) {
	_, err := New(&echoProvider{}).Run(context.Background(), []api.Utterance{{SpeechFile: "rec-1.wav"}})
	assert.ErrorContains(t, err, "no transcriber")
}
