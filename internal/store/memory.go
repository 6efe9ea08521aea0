package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"music-battle/internal/room"
)

// Memory keeps rooms in process. It backs the store service by default and
// doubles as the fake in tests.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]room.Room
	subs  *subscriberSet
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]room.Room),
		subs:  newSubscriberSet(),
		now:   timeNowUTC,
	}
}

// WithClock replaces the clock used to stamp lastActivity.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *Memory) Write(ctx context.Context, code string, doc room.Room) error {
	doc, err := checkDocument(code, doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[code] = doc
	m.subs.publish(Snapshot{Code: code, Room: doc.Clone()})
	return nil
}

func (m *Memory) Insert(ctx context.Context, code string, doc room.Room) error {
	doc, err := checkDocument(code, doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; ok {
		return ErrExists
	}
	m.rooms[code] = doc
	m.subs.publish(Snapshot{Code: code, Room: doc.Clone()})
	return nil
}

func (m *Memory) Update(ctx context.Context, code string, fields room.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rooms[code]
	if !ok {
		return ErrNotFound
	}
	merged, err := room.Apply(current, fields.Touch(m.now()))
	if err != nil {
		return err
	}
	m.rooms[code] = merged
	m.subs.publish(Snapshot{Code: code, Room: merged.Clone()})
	return nil
}

func (m *Memory) Read(ctx context.Context, code string) (room.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rooms[code]
	if !ok {
		return room.Room{}, false, nil
	}
	return doc.Clone(), true, nil
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; !ok {
		return nil
	}
	delete(m.rooms, code)
	m.subs.publish(Snapshot{Code: code, Deleted: true})
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, code string, fn Handler) (func(), error) {
	sub := newSubscriber(code, fn)
	m.mu.Lock()
	m.subs.add(sub)
	if doc, ok := m.rooms[code]; ok {
		sub.offer(Snapshot{Code: code, Room: doc.Clone()})
	}
	m.mu.Unlock()
	cancel := func() { m.subs.remove(sub) }
	watch(ctx, sub, cancel)
	return cancel, nil
}

func (m *Memory) ListAll(ctx context.Context) (map[string]room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]room.Room, len(m.rooms))
	for code, doc := range m.rooms {
		out[code] = doc.Clone()
	}
	return out, nil
}

func checkDocument(code string, doc room.Room) (room.Room, error) {
	if doc.Code != code {
		return room.Room{}, fmt.Errorf("%w: code %q does not match key %q", room.ErrInvalidDocument, doc.Code, code)
	}
	return room.Upgrade(doc.Clone())
}

// watch cancels the subscription when ctx ends.
func watch(ctx context.Context, sub *subscriber, cancel func()) {
	if ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
