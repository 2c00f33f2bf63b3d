package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fraudlens/fraudlens/pkg/types"
)

var (
	// ErrGenerationTimeout means the generation service did not answer
	// within the configured deadline.
	ErrGenerationTimeout = errors.New("narrative generation timed out")
	// ErrGenerationUnavailable means the generation service could not be
	// reached or answered with an error.
	ErrGenerationUnavailable = errors.New("narrative generation unavailable")
)

// FallbackNarrative is the pre-approved suppression message shown whenever
// a draft fails validation or generation fails entirely.
const FallbackNarrative = "Automated explanation unavailable: the generated narrative did not pass " +
	"governance checks. Please review the structured risk drivers manually."

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 2000 * time.Millisecond

// Generator produces a draft narrative for a frozen decision. The draft is
// untrusted until it passes guardrail validation, and latency is reported
// even on failure as the elapsed time to failure.
type Generator interface {
	Generate(ctx context.Context, d types.Decision, ev types.AttributionEvidence) (draft string, latency time.Duration, err error)
	Model() string
}

// Client calls an Ollama-compatible generation endpoint.
type Client struct {
	URL        string
	ModelName  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(url, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		URL:        url,
		ModelName:  model,
		Timeout:    timeout,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) Model() string { return c.ModelName }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) Generate(ctx context.Context, d types.Decision, ev types.AttributionEvidence) (string, time.Duration, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	payload, err := json.Marshal(generateRequest{
		Model:  c.ModelName,
		Prompt: BuildPrompt(d, ev),
		Stream: false,
	})
	if err != nil {
		return "", time.Since(start), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return "", time.Since(start), err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", elapsed, fmt.Errorf("%w after %s", ErrGenerationTimeout, elapsed.Round(time.Millisecond))
		}
		return "", elapsed, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Since(start), fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Since(start), fmt.Errorf("%w: status %d", ErrGenerationUnavailable, resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", time.Since(start), fmt.Errorf("%w: invalid response: %v", ErrGenerationUnavailable, err)
	}

	draft := strings.TrimSpace(out.Response)
	if draft == "" {
		return "", time.Since(start), fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}
	return draft, time.Since(start), nil
}
