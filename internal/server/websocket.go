package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"music-battle/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	id      string
	code    string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) Send(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(payload)
}

type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[string]*wsClient
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[string]*wsClient),
	}
}

func (h *wsHub) Add(code string, conn *websocket.Conn) *wsClient {
	client := &wsClient{id: uuid.NewString(), code: code, conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		group = make(map[string]*wsClient)
		h.groups[code] = group
	}
	group[client.id] = client
	return client
}

func (h *wsHub) Remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = client.conn.Close()
	group := h.groups[client.code]
	if group == nil {
		return
	}
	delete(group, client.id)
	if len(group) == 0 {
		delete(h.groups, client.code)
	}
}

// Count returns the clients watching code, or every client when code is
// empty.
func (h *wsHub) Count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if code != "" {
		return len(h.groups[code])
	}
	total := 0
	for _, group := range h.groups {
		total += len(group)
	}
	return total
}

func (h *wsHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, group := range h.groups {
		for _, client := range group {
			_ = client.conn.Close()
		}
		delete(h.groups, code)
	}
}

// handleWebsocket streams the room's snapshots to the client until either
// side goes away. The current document is sent first.
func (s *Server) handleWebsocket(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	if _, ok, err := s.store.Read(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	} else if !ok {
		respondError(c, store.ErrNotFound)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := s.ws.Add(code, conn)
	log.Info().Str("room_code", code).Str("client", client.id).Str("remote", c.ClientIP()).Msg("ws connected")

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe, err := s.store.Subscribe(ctx, code, func(snap store.Snapshot) {
		if err := client.Send(snap); err != nil {
			cancel()
			return
		}
		if snap.Deleted {
			_ = conn.Close()
		}
	})
	if err != nil {
		cancel()
		log.Warn().Str("room_code", code).Err(err).Msg("ws subscribe failed")
		s.ws.Remove(client)
		return
	}
	go s.readWS(client, func() {
		unsubscribe()
		cancel()
	})
}

func (s *Server) readWS(client *wsClient, stop func()) {
	defer s.ws.Remove(client)
	defer stop()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Debug().Str("room_code", client.code).Str("client", client.id).Err(err).Msg("ws disconnected")
			return
		}
	}
}
