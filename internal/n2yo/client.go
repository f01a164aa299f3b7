package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kimxines02/AstroNext/internal/metrics"
	"github.com/kimxines02/AstroNext/internal/tracing"
)

const (
	defaultTimeout = 10 * time.Second

	// maxBodyBytes caps upstream responses; N2YO answers are a few KB.
	maxBodyBytes = 5 << 20
)

// Config holds the upstream API settings. BaseURL and APIKey are required.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate reports missing or unusable settings.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("N2YO API key is not set")
	}
	if c.BaseURL == "" {
		return errors.New("N2YO API base URL is not set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("N2YO API base URL %q is not an absolute http(s) URL", c.BaseURL)
	}
	return nil
}

// Client fetches raw JSON from the N2YO REST API. The API key is appended as
// the apiKey query parameter and never appears in returned errors or logs.
type Client struct {
	base       *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(cfg.BaseURL)
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:       base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// URL returns the full upstream URL for req, including the API key.
func (c *Client) URL(req Request) string {
	u := c.base.JoinPath(req.Path())
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch performs the upstream GET for req and returns the JSON body.
func (c *Client) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer().Start(ctx, "n2yo.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("n2yo.kind", string(req.Kind)),
		attribute.String("n2yo.path", req.Path()),
	)

	start := time.Now()
	body, status, err := c.do(ctx, req)
	outcome := outcomeOf(err)
	metrics.ObserveUpstream(string(req.Kind), outcome, time.Since(start))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("upstream request failed",
			"component", "n2yo",
			"kind", req.Kind,
			"path", req.Path(),
			"outcome", outcome,
			"error", c.redact(err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("upstream request completed",
		"component", "n2yo",
		"kind", req.Kind,
		"path", req.Path(),
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req), nil)
	if err != nil {
		return nil, 0, &TransportError{Kind: req.Kind, Err: errors.New("creating request failed")}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, transportError(req.Kind, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{
			Kind:    req.Kind,
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &UpstreamStatusError{
			Kind:       req.Kind,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	if !json.Valid(body) {
		return nil, resp.StatusCode, &UpstreamStatusError{
			Kind:       req.Kind,
			StatusCode: http.StatusBadGateway,
			Message:    "upstream returned a non-JSON body",
		}
	}
	return body, resp.StatusCode, nil
}

func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "REDACTED")
}

// transportError strips the *url.Error wrapper, whose message embeds the
// full request URL and therefore the API key.
func transportError(kind Kind, err error) *TransportError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var uerr *url.Error
	if errors.As(err, &uerr) {
		timeout = timeout || uerr.Timeout()
		err = uerr.Err
	}
	return &TransportError{Kind: kind, Timeout: timeout, Err: err}
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d byte limit", maxBodyBytes)
	}
	return body, nil
}

// outcomeOf classifies err for metrics and span status.
func outcomeOf(err error) string {
	var te *TransportError
	var se *UpstreamStatusError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te) && te.Timeout:
		return "timeout"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &se):
		return "status"
	default:
		return "error"
	}
}
