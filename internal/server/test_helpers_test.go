package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"music-battle/internal/config"
	"music-battle/internal/logger"
	"music-battle/internal/room"
	"music-battle/internal/store"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

type testApp struct {
	srv *Server
	ts  *httptest.Server
	st  *store.Memory
}

func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	st := store.NewMemory()
	srv := New(st, cfg)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testApp{srv: srv, ts: ts, st: st}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimitPerSecond = 0
	return cfg
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader = bytes.NewReader(nil)
	switch p := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(p)
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func newRoom(t *testing.T, code, host string, at time.Time) room.Room {
	t.Helper()
	doc, err := room.New(code, host, room.Settings{Genre: "rock", TurnTime: 15}, at)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	return doc
}

func seedRoom(t *testing.T, st store.Store, code, host string) room.Room {
	t.Helper()
	doc := newRoom(t, code, host, time.Now())
	if err := st.Write(context.Background(), code, doc); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return doc
}

func wsURL(ts *httptest.Server, code string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/" + code
}
