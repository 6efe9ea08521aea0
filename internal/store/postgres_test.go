package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"music-battle/internal/db"
	"music-battle/internal/room"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
}

// openTestPostgres connects to TEST_DATABASE_URL and clears the room
// tables. Tests using it are skipped when the variable is unset.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := db.Open(dsn, db.PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	require.NoError(t, conn.Exec("DELETE FROM rooms").Error)
	require.NoError(t, conn.Exec("DELETE FROM events").Error)
	return NewPostgres(conn, 20*time.Millisecond)
}

func TestPostgresStore(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()
	doc, err := room.New("PGT123", "Ana", room.Settings{Genre: "rock", TurnTime: 15}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.Insert(ctx, "PGT123", doc))
	require.ErrorIs(t, p.Insert(ctx, "PGT123", doc), ErrExists)

	got, ok, err := p.Read(ctx, "PGT123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", got.Host)

	var mu sync.Mutex
	var snaps []Snapshot
	cancel, err := p.Subscribe(ctx, "PGT123", func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()
	latest := func() Snapshot {
		mu.Lock()
		defer mu.Unlock()
		if len(snaps) == 0 {
			return Snapshot{}
		}
		return snaps[len(snaps)-1]
	}

	fields, err := room.Join(got, "Beto")
	require.NoError(t, err)
	require.NoError(t, p.Update(ctx, "PGT123", fields))
	require.Eventually(t, func() bool { return latest().Room.Player2 == "Beto" }, 2*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, p.Update(ctx, "NOPE12", fields), ErrNotFound)

	all, err := p.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	var events int64
	require.NoError(t, p.db.Model(&db.Event{}).Where("room_code = ?", "PGT123").Count(&events).Error)
	assert.GreaterOrEqual(t, events, int64(1))

	require.NoError(t, p.Delete(ctx, "PGT123"))
	require.Eventually(t, func() bool { return latest().Deleted }, 2*time.Second, 10*time.Millisecond)
	_, ok, err = p.Read(ctx, "PGT123")
	require.NoError(t, err)
	assert.False(t, ok)
}
