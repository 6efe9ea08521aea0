// Package lifecycle keeps the shared store bounded: it refuses new rooms
// past the cap, sweeps idle rooms, and removes finished games.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"music-battle/internal/room"
	"music-battle/internal/store"

	"github.com/rs/zerolog/log"
)

var ErrLimitReached = errors.New("room limit reached, try again later")

type Options struct {
	MaxRooms       int
	Inactivity     time.Duration
	SweepInterval  time.Duration
	PostGameDelete time.Duration
	RematchDelete  time.Duration
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MaxRooms:       20,
		Inactivity:     10 * time.Minute,
		SweepInterval:  5 * time.Minute,
		PostGameDelete: 10 * time.Second,
		RematchDelete:  30 * time.Second,
	}
}

type Manager struct {
	store store.Store
	opts  Options

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func New(st store.Store, opts Options) *Manager {
	def := DefaultOptions()
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = def.MaxRooms
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = def.Inactivity
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}
	if opts.PostGameDelete <= 0 {
		opts.PostGameDelete = def.PostGameDelete
	}
	if opts.RematchDelete <= 0 {
		opts.RematchDelete = def.RematchDelete
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:  st,
		opts:   opts,
		timers: make(map[string]*time.Timer),
	}
}

// CheckCapacity reports ErrLimitReached when the store already holds the
// maximum number of rooms. A failed count is returned as is, so callers
// never create a room they could not account for.
func (m *Manager) CheckCapacity(ctx context.Context) error {
	rooms, err := m.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	if len(rooms) >= m.opts.MaxRooms {
		return ErrLimitReached
	}
	return nil
}

type Report struct {
	Scanned  int
	Inactive []string
	Evicted  []string
	Failed   []string
}

func (r Report) Deleted() int {
	return len(r.Inactive) + len(r.Evicted)
}

type sweepEntry struct {
	code     string
	activity time.Time
}

// Sweep deletes every room idle for longer than the inactivity threshold,
// whatever its status, then evicts the least recently active rooms while
// more than MaxRooms remain. Individual delete failures are logged and
// skipped.
func (m *Manager) Sweep(ctx context.Context) (Report, error) {
	rooms, err := m.store.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list rooms: %w", err)
	}
	now := m.opts.Now()
	report := Report{Scanned: len(rooms)}

	remaining := make([]sweepEntry, 0, len(rooms))
	for code, doc := range rooms {
		activity := doc.ActivityTime()
		if now.Sub(activity) <= m.opts.Inactivity {
			remaining = append(remaining, sweepEntry{code: code, activity: activity})
			continue
		}
		if err := m.store.Delete(ctx, code); err != nil {
			log.Warn().Err(err).Str("room_code", code).Msg("sweep delete failed")
			report.Failed = append(report.Failed, code)
			continue
		}
		m.CancelDeletion(code)
		report.Inactive = append(report.Inactive, code)
		log.Info().Str("room_code", code).Dur("idle", now.Sub(activity)).Msg("room removed for inactivity")
	}

	if excess := len(remaining) - m.opts.MaxRooms; excess > 0 {
		sort.Slice(remaining, func(i, j int) bool {
			if remaining[i].activity.Equal(remaining[j].activity) {
				return remaining[i].code < remaining[j].code
			}
			return remaining[i].activity.Before(remaining[j].activity)
		})
		for _, entry := range remaining[:excess] {
			if err := m.store.Delete(ctx, entry.code); err != nil {
				log.Warn().Err(err).Str("room_code", entry.code).Msg("eviction failed")
				report.Failed = append(report.Failed, entry.code)
				continue
			}
			m.CancelDeletion(entry.code)
			report.Evicted = append(report.Evicted, entry.code)
			log.Info().Str("room_code", entry.code).Msg("room evicted over capacity")
		}
	}
	sort.Strings(report.Inactive)
	sort.Strings(report.Failed)
	if report.Deleted() > 0 {
		log.Info().Int("deleted", report.Deleted()).Int("scanned", report.Scanned).Msg("sweep complete")
	}
	return report, nil
}

// Run sweeps once right away and then on every interval until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	m.sweepLogged(ctx)
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepLogged(ctx)
		}
	}
}

func (m *Manager) sweepLogged(ctx context.Context) {
	if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("sweep failed")
	}
}

// DeletionDelay is the wait before a finished room is removed.
func (m *Manager) DeletionDelay(rematchPossible bool) time.Duration {
	if rematchPossible {
		return m.opts.RematchDelete
	}
	return m.opts.PostGameDelete
}

// ScheduleDeletion removes the room after the post-game delay unless, when
// the timer fires, a fresh read shows it is no longer a finished game or a
// rematch was accepted. Scheduling again for the same room replaces the
// pending timer.
func (m *Manager) ScheduleDeletion(code string, rematchPossible bool) {
	delay := m.DeletionDelay(rematchPossible)
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	if existing, ok := m.timers[code]; ok {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.timersMu.Lock()
		if m.timers[code] == timer {
			delete(m.timers, code)
		}
		m.timersMu.Unlock()
		m.deleteIfFinished(context.Background(), code)
	})
	m.timers[code] = timer
}

func (m *Manager) deleteIfFinished(ctx context.Context, code string) {
	doc, ok, err := m.store.Read(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("post-game read failed")
		return
	}
	if !ok {
		return
	}
	if doc.Status != room.StatusEnded || doc.RematchAccepted {
		log.Debug().Str("room_code", code).Str("status", string(doc.Status)).Msg("post-game deletion skipped")
		return
	}
	if err := m.store.Delete(ctx, code); err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("post-game delete failed")
		return
	}
	log.Info().Str("room_code", code).Msg("finished room removed")
}

func (m *Manager) CancelDeletion(code string) {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	if timer, ok := m.timers[code]; ok {
		timer.Stop()
		delete(m.timers, code)
	}
}

// Pending reports whether a deletion timer is armed for code.
func (m *Manager) Pending(code string) bool {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	_, ok := m.timers[code]
	return ok
}

// Teardown deletes a room right away, used after a decline or when the
// rematch window closes.
func (m *Manager) Teardown(ctx context.Context, code string) error {
	m.CancelDeletion(code)
	if err := m.store.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

// Stop cancels every pending deletion.
func (m *Manager) Stop() {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	for code, timer := range m.timers {
		timer.Stop()
		delete(m.timers, code)
	}
}
