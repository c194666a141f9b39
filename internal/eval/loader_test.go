package eval

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUtterances = `[
  {"text": "Book me a flight to Cairo", "intent": "BookFlight",
   "entities": [{"entityType": "City", "entityValue": "Cairo", "matchText": "Egypt", "matchIndex": 0}]},
  {"text": "hello", "intent": null, "entities": []}
]`

func TestReadUtterances(t *testing.T) {
	utterances, err := ReadUtterances(strings.NewReader(sampleUtterances))
	require.NoError(t, err)
	require.Len(t, utterances, 2)

	assert.Equal(t, "BookFlight", *utterances[0].Intent)
	require.Len(t, utterances[0].Entities, 1)
	assert.Equal(t, "Egypt", *utterances[0].Entities[0].MatchText)
	assert.Equal(t, 0, *utterances[0].Entities[0].MatchIndex)
	assert.Nil(t, utterances[1].Intent)
}

func TestLoadUtterancesErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"text": "not an array"}`), 0644))

	for name, path := range map[string]string{
		"empty path": "",
		"missing":    filepath.Join(dir, "missing.json"),
		"malformed":  bad,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadUtterances(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestLoadBaselineFile(t *testing.T) {
	dir := t.TempDir()

	snap, err := LoadBaselineFile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, snap)

	stats := filepath.Join(dir, "statistics.json")
	require.NoError(t, os.WriteFile(stats, []byte(`{
  "overall": {"counts": {"truePositive": 9, "falsePositive": 1, "trueNegative": 0, "falseNegative": 0},
              "metrics": {"precision": 0.9, "recall": 1, "f1": 0.95, "accuracy": 0.9}}
}`), 0644))

	snap, err = LoadBaselineFile(stats)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.ID)
	assert.Equal(t, 9, snap.Statistics[ScopeOverall].Counts.TruePositives)
	assert.Equal(t, 0.9, *snap.Statistics[ScopeOverall].Metrics.Precision)

	record := filepath.Join(dir, "record.json")
	require.NoError(t, os.WriteFile(record, []byte(`{
  "id": "build-41",
  "createdAt": "2026-01-02T03:04:05Z",
  "statistics": {"entity:City": {"counts": {"truePositive": 1, "falsePositive": 0, "trueNegative": 0, "falseNegative": 1},
                          "metrics": {"precision": 1, "recall": 0.5, "f1": 0.67, "accuracy": 0.5}}}
}`), 0644))

	snap, err = LoadBaselineFile(record)
	require.NoError(t, err)
	assert.Equal(t, "build-41", snap.ID)
	assert.Equal(t, 0.5, *snap.Statistics[EntityScope("City")].Metrics.Recall)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0644))
	_, err = LoadBaselineFile(garbage)
	assert.Error(t, err)
}
