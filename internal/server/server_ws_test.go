package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"music-battle/internal/room"
	"music-battle/internal/store"

	"github.com/gorilla/websocket"
)

func readSnapshot(t *testing.T, conn *websocket.Conn) store.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap store.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func waitClients(t *testing.T, hub *wsHub, code string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count(code) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients on %q, have %d", want, code, hub.Count(code))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketMissingRoom(t *testing.T) {
	app := newTestApp(t, testConfig())
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(app.ts, "ABC123"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail for a missing room")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %v", resp)
	}
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	app := newTestApp(t, testConfig())
	seedRoom(t, app.st, "ABC123", "Ana")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(app.ts, "ABC123"), nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	defer conn.Close()

	first := readSnapshot(t, conn)
	if first.Code != "ABC123" || first.Room.Host != "Ana" || first.Deleted {
		t.Fatalf("unexpected first snapshot: %+v", first)
	}
	waitClients(t, app.srv.ws, "ABC123", 1)

	ctx := context.Background()
	if err := app.st.Update(ctx, "ABC123", room.Fields{room.FieldPlayer2: "Beto", room.FieldStatus: room.StatusPlaying}); err != nil {
		t.Fatalf("update: %v", err)
	}
	next := readSnapshot(t, conn)
	if next.Room.Player2 != "Beto" || next.Room.Status != room.StatusPlaying {
		t.Fatalf("unexpected update snapshot: %+v", next.Room)
	}

	if err := app.st.Delete(ctx, "ABC123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone := readSnapshot(t, conn)
	if !gone.Deleted {
		t.Fatalf("expected deletion marker, got %+v", gone)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the connection after deletion")
	}
	waitClients(t, app.srv.ws, "ABC123", 0)
}

func TestWebsocketClientDisconnect(t *testing.T) {
	app := newTestApp(t, testConfig())
	seedRoom(t, app.st, "ABC123", "Ana")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(app.ts, "ABC123"), nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	readSnapshot(t, conn)
	waitClients(t, app.srv.ws, "ABC123", 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitClients(t, app.srv.ws, "", 0)
}
