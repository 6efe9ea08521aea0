package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotServer answers every websocket dial with the next batch of
// snapshots and then drops the connection.
func snapshotServer(t *testing.T, batches ...[]Snapshot) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(dials.Add(1)) - 1
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if n < len(batches) {
			for _, snap := range batches[n] {
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &dials
}

func TestRemoteSubscribeReconnectsAfterDrop(t *testing.T) {
	doc := newRoom(t, "ABC123")
	ts, dials := snapshotServer(t,
		[]Snapshot{{Code: "ABC123", Room: doc}},
		[]Snapshot{{Code: "ABC123", Room: doc}},
	)
	remote := NewRemote(ts.URL)
	remote.retry = 10 * time.Millisecond

	var rec recorder
	cancel, err := remote.Subscribe(context.Background(), "ABC123", rec.handle)
	require.NoError(t, err)
	defer cancel()

	require.Eventually(t, func() bool { return dials.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	snap, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, "Ana", snap.Room.Host)
}

func TestRemoteSubscribeStopsAfterDeletion(t *testing.T) {
	doc := newRoom(t, "ABC123")
	ts, dials := snapshotServer(t, []Snapshot{
		{Code: "ABC123", Room: doc},
		{Code: "ABC123", Deleted: true},
	})
	remote := NewRemote(ts.URL)
	remote.retry = 10 * time.Millisecond

	var rec recorder
	cancel, err := remote.Subscribe(context.Background(), "ABC123", rec.handle)
	require.NoError(t, err)
	defer cancel()

	require.Eventually(t, func() bool {
		snap, ok := rec.last()
		return ok && snap.Deleted
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
}
