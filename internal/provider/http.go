package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fractal-lba/nlueval/internal/api"
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	Endpoint string            // Base URL, e.g. "http://localhost:8080"
	Headers  map[string]string // Sent with every request (API keys)
	Timeout  time.Duration     // Per request; default 30s
}

// HTTPClient is a generic JSON-over-HTTP NLU provider.
//
// Wire contract:
//
//	POST {endpoint}/test        body: Utterance            -> Utterance
//	POST {endpoint}/transcribe  body: {"recordingId": id}  -> {"text": "..."}
type HTTPClient struct {
	endpoint   string
	headers    map[string]string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP provider.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("provider endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		headers:  cfg.Headers,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Endpoint returns the provider base URL.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Test implements Provider.
func (c *HTTPClient) Test(ctx context.Context, u api.Utterance) (api.Utterance, error) {
	var out api.Utterance
	if err := c.post(ctx, "/test", u, &out); err != nil {
		return api.Utterance{}, err
	}
	return out, nil
}

type transcribeRequest struct {
	RecordingID string `json:"recordingId"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe implements Transcriber.
func (c *HTTPClient) Transcribe(ctx context.Context, recordingID string) (string, error) {
	var out transcribeResponse
	if err := c.post(ctx, "/transcribe", transcribeRequest{RecordingID: recordingID}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Kind: KindFatal, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindFatal, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &Error{Kind: KindTransient, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		perr := &Error{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg))),
		}
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				perr.RetryAfter = secs
			}
		}
		return perr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindFatal, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}
