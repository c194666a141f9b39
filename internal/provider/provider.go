// Package provider talks to the NLU service under test.
//
// A Provider turns an expected utterance's input (its text, or its speech
// recording) into the utterance the NLU model actually produced. Failures
// are reported as *Error so callers can decide what to retry.
package provider

import (
	"context"

	"github.com/fractal-lba/nlueval/internal/api"
)

// Provider queries an NLU model with one utterance.
type Provider interface {
	// Test sends the text of u (or its speech recording when u.SpeechFile
	// is set) and returns the labeled utterance the model produced.
	Test(ctx context.Context, u api.Utterance) (api.Utterance, error)
}

// Transcriber converts a speech recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingID string) (string, error)
}
