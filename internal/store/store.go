package store

import (
	"context"
	"errors"

	"music-battle/internal/room"
)

var (
	ErrNotFound = room.ErrRoomNotFound
	ErrExists   = errors.New("room already exists")
)

// Snapshot is one subscription delivery: the full current document, or a
// deletion marker once the room is gone.
type Snapshot struct {
	Code    string    `json:"code"`
	Room    room.Room `json:"room"`
	Deleted bool      `json:"deleted,omitempty"`
}

type Handler func(Snapshot)

// Store is the shared room document store. Both players talk to it
// directly; it offers per-field last-write-wins merges and nothing stronger.
type Store interface {
	// Write creates or fully overwrites a room.
	Write(ctx context.Context, code string, doc room.Room) error
	// Update merges fields into an existing room and refreshes lastActivity.
	Update(ctx context.Context, code string, fields room.Fields) error
	Read(ctx context.Context, code string) (room.Room, bool, error)
	Delete(ctx context.Context, code string) error
	// Subscribe calls fn with the current document and again after every
	// change until the returned cancel func runs or ctx ends. Deliveries for
	// one subscription are ordered and may skip intermediate versions.
	Subscribe(ctx context.Context, code string, fn Handler) (func(), error)
	ListAll(ctx context.Context) (map[string]room.Room, error)
}

// Inserter is implemented by stores that can create a room only when the
// code is free, reporting ErrExists otherwise.
type Inserter interface {
	Insert(ctx context.Context, code string, doc room.Room) error
}
