package ai

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/reqlens/internal/metrics"
)

// ErrNoAPIKey is returned when no provider is configured or the configured
// provider lacks credentials.
var ErrNoAPIKey = stderrors.New("no_api_key")

const (
	// DefaultRequestsPerMinute bounds provider calls when unset.
	DefaultRequestsPerMinute = 30

	maxResponseSize = 10 * 1024 * 1024
	defaultTimeout  = 120 * time.Second
)

var defaultModels = map[string]string{
	"anthropic": "claude-3-5-haiku-latest",
	"ollama":    "llama3.1",
}

// Options configures a Client.
type Options struct {
	Provider          string
	Model             string
	BaseURL           string
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Client sends rate-limited completions to one provider. A Client with no
// provider is valid and reports itself unavailable.
type Client struct {
	provider   Provider
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient builds a client. An empty provider name yields an unavailable
// client; an unknown one is an error.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		model:      opts.Model,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("ai")

	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), max(1, rpm/6))

	if opts.Provider == "" {
		return c, nil
	}
	c.provider = GetProvider(opts.Provider)
	if c.provider == nil {
		return nil, fmt.Errorf("unknown ai provider %q (known: %v)", opts.Provider, ListProviders())
	}
	if c.model == "" {
		c.model = defaultModels[opts.Provider]
	}
	return c, nil
}

// Available reports whether calls can be attempted.
func (c *Client) Available() bool {
	return c != nil && c.provider != nil && c.provider.Available()
}

// ProviderName returns the configured provider, or "".
func (c *Client) ProviderName() string {
	if c == nil || c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Complete sends messages and returns the provider's reply. operation labels
// the metrics and logs.
func (c *Client) Complete(ctx context.Context, operation string, messages []Message, maxTokens int) (*Response, error) {
	if !c.Available() {
		if c != nil {
			c.metrics.AICall(operation, "unavailable")
		}
		return nil, ErrNoAPIKey
	}

	resp, err := c.complete(ctx, messages, maxTokens)
	if err != nil {
		c.metrics.AICall(operation, "error")
		c.logger.Warn("ai call failed", zap.String("operation", operation), zap.Error(err))
		return nil, err
	}
	c.metrics.AICall(operation, "ok")
	c.logger.Debug("ai call",
		zap.String("operation", operation),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens))
	return resp, nil
}

func (c *Client) complete(ctx context.Context, messages []Message, maxTokens int) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	temperature := 0.0
	body, err := c.provider.BuildRequestBody(c.model, messages, &temperature, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BuildURL(c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.provider.Name(), err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.provider.Name(), err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: status %d: %s", c.provider.Name(), httpResp.StatusCode, truncate(string(data), 200))
	}
	return c.provider.ParseResponse(data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
