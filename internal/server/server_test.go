package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"music-battle/internal/room"
)

func TestHealth(t *testing.T) {
	app := newTestApp(t, testConfig())
	seedRoom(t, app.st, "ABC123", "Ana")

	resp := doRequest(t, app.ts, http.MethodGet, "/healthz", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["rooms"] != float64(1) {
		t.Fatalf("expected 1 room, got %v", body["rooms"])
	}
}

func TestRoomCRUD(t *testing.T) {
	app := newTestApp(t, testConfig())
	doc := newRoom(t, "ABC123", "Ana", time.Now())

	expectStatus(t, doRequest(t, app.ts, http.MethodPost, "/api/rooms/ABC123", doc), http.StatusCreated)
	expectStatus(t, doRequest(t, app.ts, http.MethodPost, "/api/rooms/ABC123", doc), http.StatusConflict)

	resp := doRequest(t, app.ts, http.MethodGet, "/api/rooms/ABC123", nil)
	expectStatus(t, resp, http.StatusOK)
	var got room.Room
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if got.Host != "Ana" || got.Status != room.StatusWaiting {
		t.Fatalf("unexpected room: %+v", got)
	}

	patch := room.Fields{room.FieldPlayer2: "Beto", room.FieldStatus: room.StatusPlaying}
	expectStatus(t, doRequest(t, app.ts, http.MethodPatch, "/api/rooms/ABC123", patch), http.StatusNoContent)
	stored, ok, err := app.st.Read(context.Background(), "ABC123")
	if err != nil || !ok {
		t.Fatalf("read stored room: ok=%v err=%v", ok, err)
	}
	if stored.Player2 != "Beto" || stored.Status != room.StatusPlaying {
		t.Fatalf("patch not applied: %+v", stored)
	}

	doc.Message = "overwritten"
	expectStatus(t, doRequest(t, app.ts, http.MethodPut, "/api/rooms/ABC123", doc), http.StatusNoContent)
	stored, _, _ = app.st.Read(context.Background(), "ABC123")
	if stored.Message != "overwritten" || stored.Player2 != "" {
		t.Fatalf("put did not overwrite: %+v", stored)
	}

	expectStatus(t, doRequest(t, app.ts, http.MethodDelete, "/api/rooms/ABC123", nil), http.StatusNoContent)
	expectStatus(t, doRequest(t, app.ts, http.MethodGet, "/api/rooms/ABC123", nil), http.StatusNotFound)
	expectStatus(t, doRequest(t, app.ts, http.MethodDelete, "/api/rooms/ABC123", nil), http.StatusNoContent)
	expectStatus(t, doRequest(t, app.ts, http.MethodPatch, "/api/rooms/ABC123", patch), http.StatusNotFound)
}

func TestRejectsBadRequests(t *testing.T) {
	app := newTestApp(t, testConfig())
	seedRoom(t, app.st, "ABC123", "Ana")
	other := newRoom(t, "XYZ789", "Caro", time.Now())

	tests := []struct {
		name    string
		method  string
		path    string
		payload any
		status  int
	}{
		{"malformed code", http.MethodGet, "/api/rooms/abc", nil, http.StatusNotFound},
		{"code too long", http.MethodGet, "/api/rooms/ABC1234", nil, http.StatusNotFound},
		{"key mismatch", http.MethodPut, "/api/rooms/ABC123", other, http.StatusBadRequest},
		{"not json", http.MethodPatch, "/api/rooms/ABC123", "not json", http.StatusBadRequest},
		{"mistyped field", http.MethodPatch, "/api/rooms/ABC123", `{"timeLeft":"soon"}`, http.StatusBadRequest},
		{"empty patch", http.MethodPatch, "/api/rooms/ABC123", `{}`, http.StatusBadRequest},
		{"future schema", http.MethodPut, "/api/rooms/ABC123", `{"version":9,"code":"ABC123"}`, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/rooms?status=paused", nil, http.StatusBadRequest},
		{"oversized patch", http.MethodPatch, "/api/rooms/ABC123", `{"message":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, doRequest(t, app.ts, tt.method, tt.path, tt.payload), tt.status)
		})
	}

	stored, _, _ := app.st.Read(context.Background(), "ABC123")
	if stored.Host != "Ana" || stored.TimeLeft != 15 {
		t.Fatalf("rejected requests changed the room: %+v", stored)
	}
}

func TestListRooms(t *testing.T) {
	app := newTestApp(t, testConfig())
	seedRoom(t, app.st, "ABC123", "Ana")
	seedRoom(t, app.st, "XYZ789", "Caro")
	if err := app.st.Update(context.Background(), "XYZ789", room.Fields{room.FieldStatus: room.StatusPlaying}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var all struct {
		Rooms map[string]room.Room `json:"rooms"`
	}
	resp := doRequest(t, app.ts, http.MethodGet, "/api/rooms", nil)
	expectStatus(t, resp, http.StatusOK)
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(all.Rooms))
	}

	var waiting struct {
		Rooms map[string]room.Room `json:"rooms"`
	}
	resp = doRequest(t, app.ts, http.MethodGet, "/api/rooms?status=waiting", nil)
	expectStatus(t, resp, http.StatusOK)
	if err := json.NewDecoder(resp.Body).Decode(&waiting); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := waiting.Rooms["ABC123"]; !ok || len(waiting.Rooms) != 1 {
		t.Fatalf("expected only ABC123 waiting, got %v", waiting.Rooms)
	}
}

func TestListRoomsEmpty(t *testing.T) {
	app := newTestApp(t, testConfig())
	resp := doRequest(t, app.ts, http.MethodGet, "/api/rooms", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	rooms, ok := body["rooms"].(map[string]any)
	if !ok || len(rooms) != 0 {
		t.Fatalf("expected empty rooms object, got %v", body["rooms"])
	}
}

func TestRateLimitedAPI(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerSecond = 0.001
	cfg.RateLimitBurst = 2
	app := newTestApp(t, cfg)

	expectStatus(t, doRequest(t, app.ts, http.MethodGet, "/api/rooms", nil), http.StatusOK)
	expectStatus(t, doRequest(t, app.ts, http.MethodGet, "/api/rooms", nil), http.StatusOK)
	expectStatus(t, doRequest(t, app.ts, http.MethodGet, "/api/rooms", nil), http.StatusTooManyRequests)
	// Health checks are not throttled.
	expectStatus(t, doRequest(t, app.ts, http.MethodGet, "/healthz", nil), http.StatusOK)
}

func TestRateLimiterPerClient(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(1, 2)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected burst of 2 to pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third request to be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected other client to have its own bucket")
	}
	now = now.Add(time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected a token after one second")
	}

	now = now.Add(visitorIdle + time.Second)
	limiter.Allow("10.0.0.3")
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected idle visitors pruned, have %d", len(limiter.visitors))
	}

	disabled := newRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !disabled.Allow("x") {
			t.Fatalf("disabled limiter refused a request")
		}
	}
}

func TestRunSweepsWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.ServerSweep = true
	cfg.InactivitySeconds = 60
	app := newTestApp(t, cfg)

	stale := newRoom(t, "OLD123", "Ana", time.Now().Add(-time.Hour))
	if err := app.st.Write(context.Background(), "OLD123", stale); err != nil {
		t.Fatalf("write: %v", err)
	}
	seedRoom(t, app.st, "NEW123", "Caro")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.srv.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, _ := app.st.Read(context.Background(), "OLD123"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stale room was not swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok, _ := app.st.Read(context.Background(), "NEW123"); !ok {
		t.Fatalf("active room was swept")
	}
	cancel()
	<-done
}
