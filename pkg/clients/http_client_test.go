package clients

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/testutil"
)

func newTestClient(t *testing.T) *HTTPClient {
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	c := NewHTTPClient(cfg, testutil.TestLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHead(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/list.json", testutil.Route{Headers: map[string]string{"X-Total-Pages": "7"}})

	c := newTestClient(t)
	h, err := c.Head(testutil.TestContext(t), srv.URL+"/list.json")
	require.NoError(t, err)
	assert.Equal(t, "7", h.Get("X-Total-Pages"))
	assert.Equal(t, 1, srv.Hits(http.MethodHead, "/list.json"))
}

func TestGetBytes(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/pma.zip", testutil.Route{Body: []byte("payload")})

	c := newTestClient(t)
	data, err := c.GetBytes(testutil.TestContext(t), srv.URL+"/pma.zip")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.FailedRequests)
	assert.Equal(t, int64(7), stats.BytesRead)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestGetBytesStatusError(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/pmn7680.zip", testutil.Route{Status: http.StatusServiceUnavailable})

	c := newTestClient(t)
	_, err := c.GetBytes(testutil.TestContext(t), srv.URL+"/pmn7680.zip")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeHTTPStatus))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusServiceUnavailable, e.Details["status"])

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.ErrorsByType["http_status"])
}

func TestNetworkError(t *testing.T) {
	srv := testutil.NewServer(t)
	url := srv.URL
	srv.Close()

	c := newTestClient(t)
	_, err := c.GetBytes(testutil.TestContext(t), url+"/gone")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork))
	assert.Equal(t, int64(1), c.GetStats().ErrorsByType["network"])
}

func TestNotFoundIsStatusError(t *testing.T) {
	srv := testutil.NewServer(t)

	c := newTestClient(t)
	_, err := c.Head(testutil.TestContext(t), srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeHTTPStatus))
}

func TestWithTimeout(t *testing.T) {
	c := newTestClient(t)
	assert.Equal(t, time.Minute, c.Timeout())

	archive := c.WithTimeout(0)
	assert.Equal(t, time.Duration(0), archive.Timeout())
	assert.Equal(t, time.Minute, c.Timeout())
	assert.Same(t, c.transport, archive.transport)
	assert.Same(t, c.metrics, archive.metrics)
}

func TestUserAgent(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := newTestClient(t)
	_, err := c.GetBytes(testutil.TestContext(t), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "meddevices/1.0", <-got)
}
