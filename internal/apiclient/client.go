// Package apiclient issues the admin API's HTTP calls. Every call is a single round
// trip; failures come back as *failure.Failure.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"shopadmin/internal/failure"
)

const maxBody = 8 << 20

type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithJar replaces the in-memory cookie jar, e.g. with a FileJar.
func WithJar(j http.CookieJar) Option { return func(c *Client) { c.http.Jar = j } }

// WithHTTPClient swaps the transport client; its Jar is kept when set.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		jar := c.http.Jar
		c.http = h
		if c.http.Jar == nil {
			c.http.Jar = jar
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: expected http or https", baseURL)
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		base:    u,
		http:    &http.Client{Jar: jar},
		timeout: 10 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range opts {
		fn(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) url(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// errorBody is the server's failure shape; both keys occur.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	if m := strings.TrimSpace(b.Message); m != "" {
		return m
	}
	return strings.TrimSpace(b.Error)
}

// do sends body as JSON (when non-nil) and decodes the response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	return c.send(ctx, method, path, "application/json", rd, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	op := method + " " + path
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return &failure.Failure{Kind: failure.KindNetwork, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api call failed", "op", op, "err", err)
		return transportFailure(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportFailure(op, err)
	}
	c.logger.Debug("api call", "op", op, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &failure.Failure{
			Kind:    kindForStatus(resp.StatusCode),
			Op:      op,
			Status:  resp.StatusCode,
			Message: eb.text(),
		}
	}

	// Some handlers report failure as 2xx with an "error" field.
	if len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && strings.TrimSpace(eb.Error) != "" {
			return &failure.Failure{
				Kind:    failure.KindServer,
				Op:      op,
				Status:  resp.StatusCode,
				Message: strings.TrimSpace(eb.Error),
			}
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &failure.Failure{Kind: failure.KindServer, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func kindForStatus(code int) failure.Kind {
	switch code {
	case http.StatusUnauthorized:
		return failure.KindUnauthorized
	case http.StatusForbidden:
		return failure.KindForbidden
	case http.StatusNotFound:
		return failure.KindNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return failure.KindTimeout
	}
	return failure.KindServer
}

func transportFailure(op string, err error) *failure.Failure {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &failure.Failure{Kind: failure.KindTimeout, Op: op, Err: err}
	}
	return &failure.Failure{Kind: failure.KindNetwork, Op: op, Err: err}
}
