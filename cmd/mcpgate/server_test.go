package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/mcpgate/config"
)

var serverSeq atomic.Int64

// newTestServer 在随机端口启动完整网关；每个实例使用独立的指标命名空间
func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	s := NewServer(cfg, zaptest.NewLogger(t), nil)
	s.metricsNamespace = fmt.Sprintf("mcpgate_test_%d", serverSeq.Add(1))
	require.NoError(t, s.Start())
	t.Cleanup(s.Shutdown)
	return s
}

func (s *Server) url(path string) string {
	return "http://" + s.httpManager.Addr() + path
}

func TestServer_HealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Get(s.url("/health"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = http.Get(s.url("/ready"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReadyFailsWhileDraining(t *testing.T) {
	s := newTestServer(t, nil)

	var (
		code int
		body string
	)
	s.httpManager.OnShutdown(func() {
		rec := httptest.NewRecorder()
		s.healthHandler.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		code, body = rec.Code, rec.Body.String()
	})
	s.Shutdown()

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "http server draining")
}

func TestServer_RPCThroughMiddleware(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Gateway.ServerName = "gate-under-test"
	})

	resp, err := http.Post(s.url("/"), "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":"init","method":"initialize"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"gate-under-test"`)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestServer_Preflight(t *testing.T) {
	s := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, s.url("/message"), nil)
	req.Header.Set("Origin", "https://client.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_DebugLastRecordsUserAgent(t *testing.T) {
	s := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodPost, s.url("/message"),
		strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
	req.Header.Set("User-Agent", "first-agent/1.0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, s.url("/debug/last"), nil)
	req.Header.Set("User-Agent", "second-agent/2.0")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), `"second-agent/2.0"`)
	assert.Contains(t, string(body), `"first-agent/1.0"`)
	assert.Contains(t, string(body), `"tools/list"`)
}

// 关闭时，挂起的 SSE 连接必须被结束，Shutdown 不能等到超时
func TestServer_ShutdownEndsStreams(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Server.ShutdownTimeout = 10 * time.Second
	s := NewServer(cfg, zaptest.NewLogger(t), nil)
	s.metricsNamespace = fmt.Sprintf("mcpgate_test_%d", serverSeq.Add(1))
	require.NoError(t, s.Start())

	resp, err := http.Get(s.url("/sse?session_id=closing"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closing", resp.Header.Get("X-Session-Id"))

	require.Eventually(t, func() bool {
		_, ok := s.sessions.Lookup("closing")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	// 流结束后读到 EOF
	_, err = io.Copy(io.Discard, bufio.NewReader(resp.Body))
	assert.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked on an open stream")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestCheckHealth(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	}))
	defer ok.Close()
	assert.NoError(t, checkHealth(ok.Client(), ok.URL))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	err := checkHealth(bad.Client(), bad.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger := initLogger(config.LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stderr"}})
		require.NotNil(t, logger)
		assert.True(t, logger.Core().Enabled(-1), "debug should be enabled for %s", format)
	}

	logger := initLogger(config.LogConfig{Level: "error", Format: "json"})
	assert.False(t, logger.Core().Enabled(0))
}
