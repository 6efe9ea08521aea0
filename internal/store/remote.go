package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"music-battle/internal/room"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Remote talks to the store service over HTTP and receives subscription
// deliveries over a websocket per room.
type Remote struct {
	base   string
	client *http.Client
	dialer *websocket.Dialer
	retry  time.Duration
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
		dialer: websocket.DefaultDialer,
		retry:  time.Second,
	}
}

func (r *Remote) Write(ctx context.Context, code string, doc room.Room) error {
	return r.do(ctx, http.MethodPut, "/api/rooms/"+url.PathEscape(code), doc, nil)
}

func (r *Remote) Insert(ctx context.Context, code string, doc room.Room) error {
	return r.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(code), doc, nil)
}

func (r *Remote) Update(ctx context.Context, code string, fields room.Fields) error {
	return r.do(ctx, http.MethodPatch, "/api/rooms/"+url.PathEscape(code), fields, nil)
}

func (r *Remote) Read(ctx context.Context, code string) (room.Room, bool, error) {
	var doc room.Room
	err := r.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(code), nil, &doc)
	if errors.Is(err, ErrNotFound) {
		return room.Room{}, false, nil
	}
	if err != nil {
		return room.Room{}, false, err
	}
	doc, err = room.Upgrade(doc)
	if err != nil {
		return room.Room{}, false, err
	}
	return doc, true, nil
}

func (r *Remote) Delete(ctx context.Context, code string) error {
	err := r.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(code), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (r *Remote) ListAll(ctx context.Context) (map[string]room.Room, error) {
	var resp struct {
		Rooms map[string]room.Room `json:"rooms"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/rooms", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Rooms == nil {
		resp.Rooms = map[string]room.Room{}
	}
	return resp.Rooms, nil
}

func (r *Remote) Subscribe(ctx context.Context, code string, fn Handler) (func(), error) {
	wsURL, err := r.websocketURL("/ws/rooms/" + url.PathEscape(code))
	if err != nil {
		return nil, err
	}
	conn, _, err := r.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}
	sub := newSubscriber(code, fn)
	go r.readLoop(ctx, sub, wsURL, conn)
	return sub.close, nil
}

func (r *Remote) readLoop(ctx context.Context, sub *subscriber, wsURL string, conn *websocket.Conn) {
	for {
		closed := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				sub.close()
			case <-sub.done:
			case <-closed:
				return
			}
			_ = conn.Close()
		}()
		deleted := false
		for !deleted {
			var snap Snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				break
			}
			if !snap.Deleted {
				doc, err := room.Upgrade(snap.Room)
				if err != nil {
					log.Warn().Str("room_code", sub.code).Err(err).Msg("dropping unreadable room")
					continue
				}
				snap.Room = doc
			}
			sub.offer(snap)
			deleted = snap.Deleted
		}
		close(closed)
		_ = conn.Close()
		if deleted {
			return
		}

		for {
			select {
			case <-sub.done:
				return
			case <-time.After(r.retry):
			}
			next, _, err := r.dialer.DialContext(ctx, wsURL, nil)
			if err == nil {
				conn = next
				break
			}
			log.Debug().Str("room_code", sub.code).Err(err).Msg("subscription reconnect failed")
		}
	}
}

func (r *Remote) websocketURL(path string) (string, error) {
	u, err := url.Parse(r.base + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (r *Remote) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrExists
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("store %s %s: %s", method, path, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
