package aivis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUserAgent = "aivis-go"
	maxErrorBody     = 64 << 10
)

// Client is the aivis SDK entry point. Safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{userAgent: defaultUserAgent}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("aivis: invalid base URL %q", baseURL)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	hc := cfg.httpClient
	if hc == nil {
		// No client timeout: run streams last as long as the run.
		hc = &http.Client{}
	}

	return &Client{
		baseURL:   u,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

func (c *Client) newRequest(
	ctx context.Context, method, path string, query url.Values, body any,
) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("aivis: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("aivis: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// getJSON performs a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(op, start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("aivis: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("aivis: decode %s response: %w", op, err)
	}
	return nil
}

// decodeError turns a non-2xx response into an *APIError.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Active  int    `json:"active"`
		Limit   int    `json:"limit"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if json.Unmarshal(raw, &body) == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Active = body.Active
		apiErr.Limit = body.Limit
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

// Slots returns how many runs the domain has open and how many it may have.
func (c *Client) Slots(ctx context.Context, domainID int64) (Slots, error) {
	var out Slots
	err := c.getJSON(ctx, "slots", fmt.Sprintf("/api/v1/domains/%d/slots", domainID), nil, &out)
	return out, err
}

// Models lists the model names every phrase is sent to.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	if err := c.getJSON(ctx, "models", "/api/v1/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Usage returns per-model token usage for the given period.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (UsageReport, error) {
	var q url.Values
	if period != "" {
		q = url.Values{"period": {string(period)}}
	}
	var out UsageReport
	err := c.getJSON(ctx, "usage", "/api/v1/usage", q, &out)
	return out, err
}

// Health checks the health of all server components. An unhealthy server is
// reported through the returned status, not as an error.
func (c *Client) Health(ctx context.Context) (status HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("aivis: health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("aivis: decode health response: %w", err)
	}
	return status, nil
}

// IsRetryable reports whether err is a rejection that may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTooManyRuns) || errors.Is(err, ErrRateLimited)
}
