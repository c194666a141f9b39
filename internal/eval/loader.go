package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fractal-lba/nlueval/internal/api"
)

// LoadUtterances reads a JSON array of utterances from path.
// A missing path, unreadable file or malformed JSON is a ConfigurationError.
func LoadUtterances(path string) ([]api.Utterance, error) {
	if path == "" {
		return nil, configErrorf(nil, "utterance path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, configErrorf(err, "open %s", path)
	}
	defer f.Close()

	utterances, err := ReadUtterances(f)
	if err != nil {
		return nil, configErrorf(err, "decode %s", path)
	}
	return utterances, nil
}

// ReadUtterances decodes a JSON array of utterances.
func ReadUtterances(r io.Reader) ([]api.Utterance, error) {
	var utterances []api.Utterance
	dec := json.NewDecoder(r)
	if err := dec.Decode(&utterances); err != nil {
		return nil, fmt.Errorf("malformed utterance JSON: %w", err)
	}
	return utterances, nil
}

// BaselineSnapshot is a previously recorded statistics set.
type BaselineSnapshot struct {
	ID         string                     `json:"id"`
	Statistics map[string]ScopeStatistics `json:"statistics"`
}

// BaselineSource supplies the baseline for a run. A nil snapshot with a nil
// error means no baseline exists.
type BaselineSource interface {
	Baseline(ctx context.Context) (*BaselineSnapshot, error)
}

// LoadBaselineFile reads a baseline from a previous statistics.json or from
// a stored baseline record ({"id": ..., "statistics": {...}}). A file that
// does not exist yields (nil, nil).
func LoadBaselineFile(path string) (*BaselineSnapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", path, err)
	}
	return decodeBaseline(data)
}

func decodeBaseline(data []byte) (*BaselineSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("malformed baseline: %w", err)
	}

	_, hasID := fields["id"]
	rawStats, hasStats := fields["statistics"]
	if hasID && hasStats && bytes.HasPrefix(bytes.TrimSpace(rawStats), []byte("{")) {
		var snap BaselineSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("malformed baseline record: %w", err)
		}
		return &snap, nil
	}

	var stats map[string]ScopeStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("malformed baseline statistics: %w", err)
	}
	return &BaselineSnapshot{Statistics: stats}, nil
}
