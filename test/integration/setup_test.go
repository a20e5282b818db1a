// Package integration contains end-to-end tests for the yapper relay.
//
// These tests run the real routes behind an httptest server and talk to them
// over gorilla/websocket, checking room fan-out, error replies, origin
// enforcement and shutdown as a client would observe them.
package integration

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tarun2000/yapper-BE/internal/metrics"
	"github.com/tarun2000/yapper-BE/internal/server"
	"github.com/tarun2000/yapper-BE/test/testhelpers"
)

type testEnv struct {
	hub      *server.Hub
	registry *prometheus.Registry
	server   *httptest.Server
	wsURL    string
}

// startTestServer applies the default config, lets customize adjust it, and
// serves the full route set. Everything is torn down when the test ends.
func startTestServer(t *testing.T, customize func(cfg *server.Config)) *testEnv {
	t.Helper()

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	reg := prometheus.NewRegistry()
	hub := server.NewHub(zerolog.Nop(), metrics.New(reg))
	go hub.Run()

	ts := testhelpers.CreateTestServer(server.SetupRoutes(hub, reg))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &testEnv{
		hub:      hub,
		registry: reg,
		server:   ts,
		wsURL:    testhelpers.WebSocketURL(ts.URL),
	}
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
