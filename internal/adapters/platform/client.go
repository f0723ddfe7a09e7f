package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// Default client settings.
const (
	DefaultTimeout   = 15 * time.Second
	DefaultRate      = 2.0
	DefaultBurst     = 2
	defaultUserAgent = "codeboard-sync/1.0"
	maxBodyBytes     = 4 << 20
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit sets the token bucket of one platform.
func WithRateLimit(p model.Platform, perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiters[p] = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is the HTTP client shared by all adapters.
type Client struct {
	http      *http.Client
	limiters  map[model.Platform]*rate.Limiter
	userAgent string
	logger    logger.Logger
}

// NewClient creates a client with a default limiter per platform.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		limiters:  make(map[model.Platform]*rate.Limiter, len(model.Platforms)),
		userAgent: defaultUserAgent,
		logger:    logger.Nop(),
	}
	for _, p := range model.Platforms {
		c.limiters[p] = rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("platform")
	return c
}

type request struct {
	platform model.Platform
	username string
	method   string
	url      string
	body     io.Reader
	headers  map[string]string
	// passStatus is a non-2xx status handed back to the caller for
	// interpretation, e.g. an API reporting unknown users with 400.
	passStatus int
}

// do waits for the platform limiter, performs the request and classifies the
// outcome. The caller owns closing the body of a non-nil response.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	if lim, ok := c.limiters[r.platform]; ok {
		if err := lim.Wait(ctx); err != nil {
			return nil, transient(r.platform, r.username, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, transient(r.platform, r.username, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	class := "error"
	if resp != nil {
		class = metrics.StatusClass(resp.StatusCode)
	}
	metrics.RecordUpstreamRequest(string(r.platform), class, metrics.Since(start))
	if err != nil {
		return nil, transient(r.platform, r.username, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300,
		r.passStatus != 0 && resp.StatusCode == r.passStatus:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp)
		return nil, notFound(r.platform, r.username)
	default:
		drain(resp)
		c.logger.Debug(ctx, "upstream returned an error status",
			logger.String("platform", string(r.platform)),
			logger.Int("status", resp.StatusCode))
		return nil, transient(r.platform, r.username, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode))
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

// doJSON performs r and decodes a JSON body into out.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	if r.headers == nil {
		r.headers = map[string]string{}
	}
	r.headers["Accept"] = "application/json"
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return transient(r.platform, r.username, errors.Join(ErrMalformedPayload, err))
	}
	return nil
}

// doHTML performs r and parses an HTML body.
func (c *Client) doHTML(ctx context.Context, r request) (*goquery.Document, error) {
	if r.headers == nil {
		r.headers = map[string]string{}
	}
	r.headers["Accept"] = "text/html"
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transient(r.platform, r.username, errors.Join(ErrMalformedPayload, err))
	}
	return doc, nil
}
