// Package testutil provides testing utilities for meddevices
package testutil

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The cancel function is registered with t.Cleanup.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Zip builds an in-memory ZIP archive from name -> contents.
// Entries are written in name order.
func Zip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// CorruptZip builds a single-entry archive whose stored payload has one
// byte flipped, so the entry opens but fails its CRC check when read.
func CorruptZip(t *testing.T, name, contents string) []byte {
	t.Helper()
	require.NotEmpty(t, contents)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	i := bytes.Index(data, []byte(contents))
	require.GreaterOrEqual(t, i, 0)
	data[i+len(contents)-1] ^= 0xff
	return data
}

// Route is a canned response served by Server
type Route struct {
	Status  int
	Body    []byte
	Headers map[string]string
}

// Server is an httptest server that serves canned routes and counts
// every request it receives, keyed by "METHOD path?query".
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]Route
	hits   map[string]int
	total  int
}

// NewServer starts a Server closed automatically at test end
func NewServer(t *testing.T) *Server {
	s := &Server{
		routes: make(map[string]Route),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a route for a request target such as "/pma.zip" or
// "/list.json?page=2". Query-less targets match any query.
func (s *Server) Handle(target string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route.Status == 0 {
		route.Status = http.StatusOK
	}
	s.routes[target] = route
}

// Hits returns how many requests were made with method to target
func (s *Server) Hits(method, target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+target]
}

// Total returns the number of requests served
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	s.mu.Lock()
	s.total++
	s.hits[r.Method+" "+target]++
	route, ok := s.routes[target]
	if !ok {
		route, ok = s.routes[r.URL.Path]
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	for k, v := range route.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(route.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(route.Body)
	}
}
