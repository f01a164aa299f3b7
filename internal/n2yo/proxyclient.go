package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyClient fetches through the /api/satellite endpoint of an AstroNext
// proxy, so a dashboard can run without holding the API key itself.
type ProxyClient struct {
	endpoint   *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProxyClient returns a client for the proxy rooted at proxyURL.
func NewProxyClient(proxyURL string, timeout time.Duration, logger *slog.Logger) (*ProxyClient, error) {
	u, err := url.Parse(proxyURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("proxy URL %q is not an absolute http(s) URL", proxyURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ProxyClient{
		endpoint:   u.JoinPath("api", "satellite"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Fetch issues GET /api/satellite with req's query parameters.
func (p *ProxyClient) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u := *p.endpoint
	u.RawQuery = req.Query().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Kind: req.Kind, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(req.Kind, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: req.Kind, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		serr := &UpstreamStatusError{Kind: req.Kind, StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil {
			serr.Message = strings.TrimSpace(e.Error)
		}
		p.logger.Warn("proxy request failed",
			"component", "n2yo",
			"kind", req.Kind,
			"status", resp.StatusCode,
			"error", serr.Message,
		)
		return nil, serr
	}
	return body, nil
}
