package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"music-battle/internal/db"
	"music-battle/internal/room"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPollInterval = 500 * time.Millisecond

// Postgres keeps room documents in a jsonb column. Subscriptions poll the
// row revision, so clients in different processes see each other's writes.
type Postgres struct {
	db   *gorm.DB
	poll time.Duration
	now  func() time.Time
}

func NewPostgres(conn *gorm.DB, poll time.Duration) *Postgres {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Postgres{db: conn, poll: poll, now: timeNowUTC}
}

func (p *Postgres) Write(ctx context.Context, code string, doc room.Room) error {
	doc, err := checkDocument(code, doc)
	if err != nil {
		return err
	}
	record, err := newRecord(doc)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.Assignments(map[string]any{
			"document":      record.Document,
			"status":        record.Status,
			"created_at":    record.CreatedAt,
			"last_activity": record.LastActivity,
			"updated_at":    record.UpdatedAt,
			"revision":      gorm.Expr("rooms.revision + 1"),
		}),
	}).Create(&record).Error
	if err != nil {
		return err
	}
	p.recordEvent(ctx, code, "room_written", map[string]any{"status": doc.Status})
	return nil
}

func (p *Postgres) Insert(ctx context.Context, code string, doc room.Room) error {
	doc, err := checkDocument(code, doc)
	if err != nil {
		return err
	}
	record, err := newRecord(doc)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return err
	}
	p.recordEvent(ctx, code, "room_created", map[string]any{"host": doc.Host, "genre": doc.Genre})
	return nil
}

func (p *Postgres) Update(ctx context.Context, code string, fields room.Fields) error {
	var before, after room.Room
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record db.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		before, err = room.Decode(record.Document)
		if err != nil {
			return err
		}
		after, err = room.Apply(before, fields.Touch(p.now()))
		if err != nil {
			return err
		}
		raw, err := json.Marshal(after)
		if err != nil {
			return err
		}
		return tx.Model(&db.Room{}).Where("code = ?", code).Updates(map[string]any{
			"document":      datatypes.JSON(raw),
			"status":        string(after.Status),
			"last_activity": after.LastActivity,
			"updated_at":    p.now(),
			"revision":      gorm.Expr("revision + 1"),
		}).Error
	})
	if err != nil {
		return err
	}
	if before.Status != after.Status {
		p.recordEvent(ctx, code, "room_status", map[string]any{
			"from":   before.Status,
			"to":     after.Status,
			"winner": after.Winner,
		})
	}
	return nil
}

func (p *Postgres) Read(ctx context.Context, code string) (room.Room, bool, error) {
	doc, _, ok, err := p.load(ctx, code)
	return doc, ok, err
}

func (p *Postgres) Delete(ctx context.Context, code string) error {
	result := p.db.WithContext(ctx).Where("code = ?", code).Delete(&db.Room{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		p.recordEvent(ctx, code, "room_deleted", map[string]any{})
	}
	return nil
}

func (p *Postgres) ListAll(ctx context.Context) (map[string]room.Room, error) {
	var records []db.Room
	if err := p.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make(map[string]room.Room, len(records))
	for _, record := range records {
		doc, err := room.Decode(record.Document)
		if err != nil {
			log.Warn().Str("room_code", record.Code).Err(err).Msg("skipping unreadable room")
			continue
		}
		out[record.Code] = doc
	}
	return out, nil
}

func (p *Postgres) Subscribe(ctx context.Context, code string, fn Handler) (func(), error) {
	sub := newSubscriber(code, fn)
	cancel := sub.close
	go p.pollLoop(ctx, sub)
	return cancel, nil
}

func (p *Postgres) pollLoop(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	var lastRevision int64
	seen := false
	check := func() {
		doc, revision, ok, err := p.load(ctx, sub.code)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Str("room_code", sub.code).Err(err).Msg("room poll failed")
			}
			return
		}
		if !ok {
			if seen {
				seen = false
				lastRevision = 0
				sub.offer(Snapshot{Code: sub.code, Deleted: true})
			}
			return
		}
		if seen && revision == lastRevision {
			return
		}
		seen = true
		lastRevision = revision
		sub.offer(Snapshot{Code: sub.code, Room: doc})
	}
	check()
	for {
		select {
		case <-ctx.Done():
			sub.close()
			return
		case <-sub.done:
			return
		case <-ticker.C:
			check()
		}
	}
}

func (p *Postgres) load(ctx context.Context, code string) (room.Room, int64, bool, error) {
	var record db.Room
	err := p.db.WithContext(ctx).Where("code = ?", code).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return room.Room{}, 0, false, nil
	}
	if err != nil {
		return room.Room{}, 0, false, err
	}
	doc, err := room.Decode(record.Document)
	if err != nil {
		return room.Room{}, 0, false, err
	}
	return doc, record.Revision, true, nil
}

func (p *Postgres) recordEvent(ctx context.Context, code, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	record := db.Event{
		RoomCode:  code,
		Type:      eventType,
		Payload:   datatypes.JSON(raw),
		CreatedAt: p.now(),
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Warn().Str("room_code", code).Str("event", eventType).Err(err).Msg("persist event failed")
	}
}

func newRecord(doc room.Room) (db.Room, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return db.Room{}, fmt.Errorf("encode room: %w", err)
	}
	now := timeNowUTC()
	return db.Room{
		Code:         doc.Code,
		Document:     datatypes.JSON(raw),
		Status:       string(doc.Status),
		Revision:     1,
		CreatedAt:    doc.CreatedAt,
		LastActivity: doc.ActivityTime(),
		UpdatedAt:    now,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
