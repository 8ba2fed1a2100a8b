// Package clients provides the HTTP client used to download FDA datasets
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/meddevices/pkg/errors"
)

// HTTPClient wraps net/http with a tuned transport, typed errors and
// request metrics. Copies made by WithTimeout share the transport.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	metrics    *HTTPMetrics
	timeout    time.Duration
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DisableCompression  bool          `json:"disable_compression"`

	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts. RequestTimeout bounds a whole request including the body;
	// zero means no limit.
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	KeepAlive           time.Duration `json:"keep_alive"`

	UserAgent string `json:"user_agent"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
		EnableHTTP2:         true,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		RequestTimeout:      time.Minute,
		KeepAlive:           30 * time.Second,
		UserAgent:           "meddevices/1.0",
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:  config,
		logger:  logger.With(zap.String("component", "http_client")),
		metrics: NewHTTPMetrics(),
		timeout: config.RequestTimeout,
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		DisableCompression:    config.DisableCompression,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		} else {
			client.logger.Debug("HTTP/2 enabled")
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// WithTimeout returns a client sharing this client's transport and
// metrics with a different per-request timeout. Zero disables it.
func (c *HTTPClient) WithTimeout(d time.Duration) *HTTPClient {
	clone := *c
	clone.timeout = d
	return &clone
}

// Timeout returns the per-request timeout
func (c *HTTPClient) Timeout() time.Duration {
	return c.timeout
}

// Head performs a HEAD request and returns the response headers.
// Non-2xx responses are reported as ErrorTypeHTTPStatus.
func (c *HTTPClient) Head(ctx context.Context, url string) (http.Header, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return resp.Header, nil
}

// GetBytes performs a GET request and reads the whole body.
// Non-2xx responses are reported as ErrorTypeHTTPStatus.
func (c *HTTPClient) GetBytes(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordFailure(err)
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "failed to read response body").
			WithDetail("url", url)
	}
	c.metrics.RecordBytes(int64(len(data)))
	return data, nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid request").
			WithDetail("url", url)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrorTypeNetwork, fmt.Sprintf("%s request failed", method)).
			WithDetail("url", url)
		c.metrics.RecordRequest(method, 0, time.Since(start), wrapped)
		return nil, wrapped
	}
	c.metrics.RecordRequest(method, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, errors.Newf(errors.ErrorTypeHTTPStatus, "unexpected status %d", resp.StatusCode).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return resp, nil
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	return req, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	return c.metrics.Snapshot()
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.logger.Debug("closing HTTP client")
	c.transport.CloseIdleConnections()
	return nil
}
