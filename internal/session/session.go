// Package session is one player's client. Every input (store deliveries,
// clock ticks, visibility changes, verification results, player commands)
// is handled on a single goroutine in arrival order, so the turn clock and
// the anti-cheat monitor never see interleaved updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"music-battle/internal/anticheat"
	"music-battle/internal/catalog"
	"music-battle/internal/clock"
	"music-battle/internal/lifecycle"
	"music-battle/internal/room"
	"music-battle/internal/store"
	"music-battle/internal/verify"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoRoom          = errors.New("not in a room")
	ErrInRoom          = errors.New("already in a room")
	ErrVerifying       = errors.New("an answer is already being checked")
	ErrAnswerRequired  = errors.New("enter an artist")
	ErrUnknownGenre    = errors.New("unknown genre")
	ErrRematchDisabled = errors.New("rematch is disabled")
	ErrInfoUnavailable = errors.New("info unavailable")
	ErrClosed          = errors.New("session closed")
	ErrCreateCollision = errors.New("could not find a free room code")
	errStaleRoom       = errors.New("room changed")
)

const (
	DefaultGenre         = "rock"
	defaultCreateRetries = 5
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

type Config struct {
	TickInterval   time.Duration
	Grace          time.Duration
	WarningClear   time.Duration
	RematchWindow  time.Duration
	RematchEnabled bool
	CreateRetries  int
	// OnChange runs on the session goroutine after every handled event. It
	// must not call back into the session synchronously.
	OnChange func(View)
	NewCode  func() string
	Now      func() time.Time
}

func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		Grace:          anticheat.DefaultGrace,
		WarningClear:   2 * time.Second,
		RematchWindow:  30 * time.Second,
		RematchEnabled: true,
		CreateRetries:  defaultCreateRetries,
	}
}

// View is a read-only picture of the session for rendering.
type View struct {
	Phase            Phase          `json:"phase"`
	Code             string         `json:"code,omitempty"`
	Player           string         `json:"player,omitempty"`
	Slot             int            `json:"slot,omitempty"`
	Room             room.Room      `json:"room"`
	TimeLeft         int            `json:"timeLeft"`
	CurrentPlayer    int            `json:"currentPlayer"`
	MyTurn           bool           `json:"myTurn"`
	Visible          bool           `json:"visible"`
	Warning          bool           `json:"warning"`
	AwayRemaining    time.Duration  `json:"awayRemaining"`
	Verifying        bool           `json:"verifying"`
	LastResult       *verify.Result `json:"lastResult,omitempty"`
	RematchRemaining time.Duration  `json:"rematchRemaining"`
	Notice           string         `json:"notice,omitempty"`
}

// Outcome is what happened to a submitted answer.
type Outcome struct {
	Result  verify.Result
	Applied bool
}

type Session struct {
	store    store.Store
	catalog  catalog.Catalog
	verifier *verify.Verifier
	life     *lifecycle.Manager
	cfg      Config

	events    chan any
	quit      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once

	viewMu sync.RWMutex
	view   View

	// Owned by the loop goroutine.
	gen          int
	code         string
	name         string
	slot         int
	doc          room.Room
	hasDoc       bool
	clock        *clock.Clock
	monitor      *anticheat.Monitor
	visible      bool
	warning      bool
	notice       string
	verifying    bool
	pending      chan submitReply
	lastResult   *verify.Result
	roomCancel   context.CancelFunc
	ticker       *time.Ticker
	graceTimer   *time.Timer
	warnTimer    *time.Timer
	warnSeq      int
	rematchTimer *time.Timer
	rematchSeq   int
	rematchUntil time.Time
}

func New(st store.Store, cat catalog.Catalog, verifier *verify.Verifier, life *lifecycle.Manager, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = def.Grace
	}
	if cfg.WarningClear <= 0 {
		cfg.WarningClear = def.WarningClear
	}
	if cfg.RematchWindow <= 0 {
		cfg.RematchWindow = def.RematchWindow
	}
	if cfg.CreateRetries <= 0 {
		cfg.CreateRetries = def.CreateRetries
	}
	if cfg.NewCode == nil {
		cfg.NewCode = room.NewCode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Session{
		store:    st,
		catalog:  cat,
		verifier: verifier,
		life:     life,
		cfg:      cfg,
		events:   make(chan any, 16),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
		clock:    clock.New(),
		monitor:  anticheat.New(cfg.Grace),
		visible:  true,
	}
	s.view = View{Phase: PhaseIdle, Visible: true}
	go s.loop()
	return s
}

type command struct {
	run   func() error
	reply chan error
}

type docEvent struct {
	gen  int
	snap store.Snapshot
}

type verifiedEvent struct {
	gen    int
	answer string
	result verify.Result
}

type graceEvent struct{ gen int }

type warningEvent struct{ gen, seq int }

type rematchEvent struct{ gen, seq int }

type submitReply struct {
	outcome Outcome
	err     error
}

func (s *Session) loop() {
	defer close(s.finished)
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}
		select {
		case <-s.quit:
			s.leaveLocal("")
			return
		case <-tick:
			s.handleTick()
		case ev := <-s.events:
			if cmd, ok := ev.(command); ok {
				// Publish first so the caller sees its own change.
				err := cmd.run()
				s.publish()
				cmd.reply <- err
				continue
			}
			s.handle(ev)
		}
		s.publish()
	}
}

// post queues an event for the loop. It gives up once the session is closed
// or ctx ends.
func (s *Session) post(ctx context.Context, ev any) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	case <-ctx.Done():
		return false
	}
}

// do runs fn on the loop goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func() error) error {
	cmd := command{run: fn, reply: make(chan error, 1)}
	if !s.post(ctx, cmd) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.finished:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handle(ev any) {
	switch ev := ev.(type) {
	case docEvent:
		if ev.gen == s.gen {
			s.handleDoc(ev.snap)
		}
	case verifiedEvent:
		s.handleVerified(ev)
	case graceEvent:
		if ev.gen == s.gen {
			s.handleGrace()
		}
	case warningEvent:
		if ev.gen == s.gen && ev.seq == s.warnSeq {
			s.warning = false
		}
	case rematchEvent:
		if ev.gen == s.gen && ev.seq == s.rematchSeq {
			s.handleRematchWindow()
		}
	}
}

// Close leaves the room locally and stops the session. The room itself is
// left to the lifecycle rules.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.finished
}

func (s *Session) View() View {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	v := s.view
	v.Room = v.Room.Clone()
	return v
}

func (s *Session) publish() {
	v := View{
		Phase:         PhaseIdle,
		Code:          s.code,
		Player:        s.name,
		Slot:          s.slot,
		Visible:       s.visible,
		Warning:       s.warning,
		Verifying:     s.verifying,
		LastResult:    s.lastResult,
		Notice:        s.notice,
		TimeLeft:      s.clock.TimeLeft(),
		CurrentPlayer: s.clock.CurrentPlayer(),
	}
	if s.hasDoc {
		v.Room = s.doc.Clone()
		v.Phase = phaseOf(s.doc.Status)
		v.MyTurn = v.Phase == PhasePlaying && s.clock.CurrentPlayer() == s.slot
	}
	now := s.cfg.Now()
	v.AwayRemaining = s.monitor.Remaining(now)
	if !s.rematchUntil.IsZero() {
		v.RematchRemaining = max(s.rematchUntil.Sub(now), 0)
	}
	s.viewMu.Lock()
	s.view = v
	s.viewMu.Unlock()
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(v)
	}
}

func phaseOf(status room.Status) Phase {
	switch status {
	case room.StatusPlaying:
		return PhasePlaying
	case room.StatusEnded:
		return PhaseEnded
	default:
		return PhaseLobby
	}
}

// Create opens a new room hosted by name.
func (s *Session) Create(ctx context.Context, name string, settings room.Settings) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", room.ErrNameRequired
	}
	if settings.Genre == "" {
		settings.Genre = DefaultGenre
	}
	if _, ok := verify.LookupGenre(settings.Genre); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownGenre, settings.Genre)
	}
	var code string
	err := s.do(ctx, func() error {
		if s.code != "" {
			return ErrInRoom
		}
		if err := s.life.CheckCapacity(ctx); err != nil {
			return err
		}
		doc, err := s.insertRoom(ctx, name, settings)
		if err != nil {
			return err
		}
		code = doc.Code
		log.Info().Str("room_code", code).Str("player", name).Msg("room created")
		return s.enter(doc, name, 1)
	})
	return code, err
}

func (s *Session) insertRoom(ctx context.Context, name string, settings room.Settings) (room.Room, error) {
	inserter, canInsert := s.store.(store.Inserter)
	for attempt := 0; attempt < s.cfg.CreateRetries; attempt++ {
		doc, err := room.New(s.cfg.NewCode(), name, settings, s.cfg.Now())
		if err != nil {
			return room.Room{}, err
		}
		if !canInsert {
			return doc, s.store.Write(ctx, doc.Code, doc)
		}
		err = inserter.Insert(ctx, doc.Code, doc)
		if errors.Is(err, store.ErrExists) {
			log.Debug().Str("room_code", doc.Code).Msg("room code taken, retrying")
			continue
		}
		return doc, err
	}
	return room.Room{}, ErrCreateCollision
}

// Join takes the second seat of the room with code and starts the game.
func (s *Session) Join(ctx context.Context, name, code string) error {
	name = strings.TrimSpace(name)
	code = room.NormalizeCode(code)
	if name == "" {
		return room.ErrNameRequired
	}
	if code == "" {
		return room.ErrCodeRequired
	}
	return s.do(ctx, func() error {
		if s.code != "" {
			return ErrInRoom
		}
		doc, ok, err := s.store.Read(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return room.ErrRoomNotFound
		}
		fields, err := room.Join(doc, name)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, code, fields); err != nil {
			return err
		}
		// Two joiners can race for the seat. This read-back catches a rival
		// that wrote first; one that writes later is caught in handleDoc.
		doc, ok, err = s.store.Read(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return room.ErrRoomNotFound
		}
		if doc.Player2 != name {
			return room.ErrRoomFull
		}
		log.Info().Str("room_code", code).Str("player", name).Msg("joined room")
		return s.enter(doc, name, 2)
	})
}

// ListOpen returns rooms still waiting for a second player, newest first.
func (s *Session) ListOpen(ctx context.Context) ([]room.Summary, error) {
	rooms, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]room.Summary, 0, len(rooms))
	for _, doc := range rooms {
		if doc.Open() {
			out = append(out, doc.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Session) enter(doc room.Room, name string, slot int) error {
	s.gen++
	gen := s.gen
	s.code = doc.Code
	s.name = name
	s.slot = slot
	s.notice = ""
	s.lastResult = nil
	s.clock = clock.New()
	s.clock.SetVisible(s.visible)
	s.monitor.Reset()
	s.applyDoc(doc)

	roomCtx, cancel := context.WithCancel(context.Background())
	s.roomCancel = cancel
	unsubscribe, err := s.store.Subscribe(roomCtx, doc.Code, func(snap store.Snapshot) {
		s.post(roomCtx, docEvent{gen: gen, snap: snap})
	})
	if err != nil {
		cancel()
		s.leaveLocal("")
		return fmt.Errorf("subscribe %s: %w", doc.Code, err)
	}
	s.roomCancel = func() {
		unsubscribe()
		cancel()
	}
	s.ticker = time.NewTicker(s.cfg.TickInterval)
	return nil
}

// leaveLocal forgets the room and stops every timer tied to it.
func (s *Session) leaveLocal(notice string) {
	s.gen++
	if s.roomCancel != nil {
		s.roomCancel()
		s.roomCancel = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	stopTimer(&s.graceTimer)
	stopTimer(&s.warnTimer)
	stopTimer(&s.rematchTimer)
	if s.pending != nil {
		s.pending <- submitReply{err: ErrNoRoom}
		s.pending = nil
	}
	s.code = ""
	s.slot = 0
	s.doc = room.Room{}
	s.hasDoc = false
	s.verifying = false
	s.warning = false
	s.rematchUntil = time.Time{}
	s.notice = notice
	s.clock = clock.New()
	s.clock.SetVisible(s.visible)
	s.monitor.Reset()
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) handleDoc(snap store.Snapshot) {
	if snap.Deleted {
		log.Info().Str("room_code", s.code).Msg("room closed")
		s.leaveLocal("Room closed")
		return
	}
	if s.slot == 2 && snap.Room.Player2 != s.name {
		log.Info().Str("room_code", s.code).Str("player", s.name).Str("seated", snap.Room.Player2).Msg("lost seat")
		s.leaveLocal("Another player took the seat")
		return
	}
	s.applyDoc(snap.Room)
}

// applyDoc folds a document into local state and reacts to status changes.
func (s *Session) applyDoc(doc room.Room) {
	prev, had := s.doc, s.hasDoc
	s.doc = doc
	s.hasDoc = true
	s.monitor.ObserveStrikes(doc.Strikes(s.slot))
	s.clock.Reconcile(doc)

	wasEnded := had && prev.Status == room.StatusEnded
	switch {
	case doc.Status == room.StatusEnded && !wasEnded:
		s.onGameEnded()
	case doc.Status == room.StatusPlaying && wasEnded:
		s.onRematchStarted()
	}
	if doc.Status != room.StatusEnded {
		return
	}
	if doc.RematchDeclined {
		stopTimer(&s.rematchTimer)
		s.rematchUntil = time.Time{}
		return
	}
	if room.RematchReady(doc) {
		s.tryRestart()
	}
}

func (s *Session) onGameEnded() {
	stopTimer(&s.graceTimer)
	s.warning = false
	s.life.ScheduleDeletion(s.code, s.cfg.RematchEnabled)
	if !s.cfg.RematchEnabled {
		return
	}
	s.rematchSeq++
	seq, gen := s.rematchSeq, s.gen
	s.rematchUntil = s.cfg.Now().Add(s.cfg.RematchWindow)
	stopTimer(&s.rematchTimer)
	s.rematchTimer = time.AfterFunc(s.cfg.RematchWindow, func() {
		s.post(context.Background(), rematchEvent{gen: gen, seq: seq})
	})
}

func (s *Session) onRematchStarted() {
	stopTimer(&s.rematchTimer)
	s.rematchSeq++
	s.rematchUntil = time.Time{}
	s.life.CancelDeletion(s.code)
	s.monitor.Reset()
	s.monitor.ObserveStrikes(s.doc.Strikes(s.slot))
	s.lastResult = nil
	s.notice = ""
	log.Info().Str("room_code", s.code).Msg("rematch started")
}

// update re-reads the room and writes the fields build derives from the
// fresh copy. Guard errors from build mean the write is no longer wanted.
func (s *Session) update(ctx context.Context, build func(room.Room) (room.Fields, error)) error {
	fresh, ok, err := s.store.Read(ctx, s.code)
	if err != nil {
		return err
	}
	if !ok {
		return room.ErrRoomNotFound
	}
	fields, err := build(fresh)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, s.code, fields)
}

func isGuard(err error) bool {
	return errors.Is(err, room.ErrNotPlaying) ||
		errors.Is(err, room.ErrNotEnded) ||
		errors.Is(err, room.ErrNotYourTurn) ||
		errors.Is(err, room.ErrRematchNotReady) ||
		errors.Is(err, room.ErrStaleTick) ||
		errors.Is(err, errStaleRoom)
}

func (s *Session) logWrite(err error, what string) {
	if err == nil {
		return
	}
	if isGuard(err) {
		log.Debug().Str("room_code", s.code).Str("write", what).Err(err).Msg("write skipped")
		return
	}
	log.Warn().Str("room_code", s.code).Str("write", what).Err(err).Msg("store write failed")
}

func (s *Session) handleTick() {
	if !s.hasDoc || s.doc.Status != room.StatusPlaying {
		return
	}
	action, left := s.clock.Tick()
	ctx := context.Background()
	switch action {
	case clock.Write:
		turn := s.clock.CurrentPlayer()
		s.logWrite(s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			return room.Tick(fresh, turn, left)
		}), "tick")
	case clock.Expire:
		loser := s.clock.CurrentPlayer()
		err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			if fresh.Status == room.StatusPlaying && fresh.CurrentPlayer != loser {
				return nil, errStaleRoom
			}
			return room.End(fresh, loser, fmt.Sprintf("⏱️ Time's up. %s loses", fresh.PlayerName(loser)))
		})
		if err != nil && !isGuard(err) {
			s.clock.AbortEnding()
		}
		s.logWrite(err, "timeout")
	}
}

// Submit checks answer against the catalog and applies the verdict. The
// catalog call runs off the session goroutine; Submit waits for the verdict
// to be written.
func (s *Session) Submit(ctx context.Context, answer string) (Outcome, error) {
	answer = strings.TrimSpace(answer)
	reply := make(chan submitReply, 1)
	err := s.do(ctx, func() error {
		if !s.hasDoc {
			return ErrNoRoom
		}
		if answer == "" {
			s.notice = "Enter an artist"
			return ErrAnswerRequired
		}
		if s.doc.Status != room.StatusPlaying {
			return room.ErrNotPlaying
		}
		if s.clock.CurrentPlayer() != s.slot {
			return room.ErrNotYourTurn
		}
		if s.verifying {
			return ErrVerifying
		}
		s.verifying = true
		s.pending = reply
		req := verify.Request{
			Name:        answer,
			Genre:       s.doc.Genre,
			ArtistType:  s.doc.ArtistType,
			UsedArtists: append([]string(nil), s.doc.UsedArtists...),
		}
		gen := s.gen
		go func() {
			result := s.verifier.Verify(context.Background(), req)
			s.post(context.Background(), verifiedEvent{gen: gen, answer: answer, result: result})
		}()
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	select {
	case r := <-reply:
		return r.outcome, r.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-s.finished:
		return Outcome{}, ErrClosed
	}
}

func (s *Session) handleVerified(ev verifiedEvent) {
	if ev.gen != s.gen {
		return
	}
	reply := s.pending
	s.pending = nil
	s.verifying = false
	result := ev.result
	s.lastResult = &result

	ctx := context.Background()
	var applied bool
	err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
		// The room may have moved on while the catalog answered.
		if fresh.Status != room.StatusPlaying {
			return nil, room.ErrNotPlaying
		}
		if fresh.CurrentPlayer != s.slot {
			return nil, room.ErrNotYourTurn
		}
		if result.Valid && verify.IsUsed(result.Artist, fresh.UsedArtists) {
			result = verify.Result{
				Kind:   verify.FailDuplicate,
				Reason: fmt.Sprintf("%s was already used", result.Artist),
				Score:  result.Score,
			}
			s.lastResult = &result
		}
		applied = true
		if result.Valid {
			return room.Accept(fresh, s.slot, result.Artist)
		}
		return room.End(fresh, s.slot, fmt.Sprintf("%s. %s loses", result.Reason, s.name))
	})
	if err != nil {
		applied = false
	}
	s.logWrite(err, "answer")
	if result.Valid && applied {
		s.notice = result.Warning
	}
	log.Debug().Str("room_code", s.code).Str("player", s.name).Str("answer", ev.answer).
		Bool("valid", result.Valid).Str("reason", result.Reason).Msg("answer verified")
	if reply != nil {
		reply <- submitReply{outcome: Outcome{Result: result, Applied: applied}, err: err}
	}
}

// SetVisible reports the player's tab gaining or losing the foreground.
func (s *Session) SetVisible(ctx context.Context, visible bool) error {
	return s.do(ctx, func() error {
		// Repeated hides still count; a repeated show does not.
		if visible && s.visible {
			return nil
		}
		s.visible = visible
		s.clock.SetVisible(visible)
		if !s.hasDoc || s.doc.Status != room.StatusPlaying {
			return nil
		}
		now := s.cfg.Now()
		if visible {
			return s.onShow(ctx, now)
		}
		return s.onHide(ctx, now)
	})
}

func (s *Session) onHide(ctx context.Context, now time.Time) error {
	ev := s.monitor.Hide(now)
	s.warning = true
	s.warnSeq++
	stopTimer(&s.warnTimer)
	switch ev.Outcome {
	case anticheat.Struck:
		err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			fields, _, err := room.Strike(fresh, s.slot, ev.Strikes-1, s.name)
			return fields, err
		})
		if s.graceTimer == nil {
			gen := s.gen
			s.graceTimer = time.AfterFunc(max(ev.Deadline.Sub(now), 0), func() {
				s.post(context.Background(), graceEvent{gen: gen})
			})
		}
		s.logWrite(err, "strike")
		return ignoreGuard(err)
	case anticheat.Cheated:
		stopTimer(&s.graceTimer)
		err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			strike, _, err := room.Strike(fresh, s.slot, ev.Strikes-1, s.name)
			if err != nil {
				return nil, err
			}
			end, err := room.End(fresh, s.slot, anticheat.CheatedMessage(s.name))
			if err != nil {
				return nil, err
			}
			maps.Copy(strike, end)
			return strike, nil
		})
		s.logWrite(err, "disqualify")
		return ignoreGuard(err)
	}
	return nil
}

func (s *Session) onShow(ctx context.Context, now time.Time) error {
	ev := s.monitor.Show(now)
	if ev.Outcome != anticheat.Returned {
		return nil
	}
	stopTimer(&s.graceTimer)
	s.warnSeq++
	seq, gen := s.warnSeq, s.gen
	stopTimer(&s.warnTimer)
	s.warnTimer = time.AfterFunc(s.cfg.WarningClear, func() {
		s.post(context.Background(), warningEvent{gen: gen, seq: seq})
	})
	err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
		return room.Notice(fresh, anticheat.ReturnedMessage(s.name, ev.Away))
	})
	s.logWrite(err, "returned")
	return ignoreGuard(err)
}

func (s *Session) handleGrace() {
	s.graceTimer = nil
	ev := s.monitor.Check(s.cfg.Now())
	if ev.Outcome != anticheat.TimedOut {
		if s.monitor.State() == anticheat.Away {
			// Fired early; try again at the deadline.
			gen := s.gen
			s.graceTimer = time.AfterFunc(s.monitor.Remaining(s.cfg.Now()), func() {
				s.post(context.Background(), graceEvent{gen: gen})
			})
		}
		return
	}
	err := s.update(context.Background(), func(fresh room.Room) (room.Fields, error) {
		return room.End(fresh, s.slot, anticheat.TimedOutMessage(s.name, s.monitor.Grace()))
	})
	s.logWrite(err, "away timeout")
}

func ignoreGuard(err error) error {
	if isGuard(err) {
		return nil
	}
	return err
}

// RequestRematch raises this player's rematch flag.
func (s *Session) RequestRematch(ctx context.Context) error {
	if !s.cfg.RematchEnabled {
		return ErrRematchDisabled
	}
	return s.do(ctx, func() error {
		if !s.hasDoc {
			return ErrNoRoom
		}
		return s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			return room.RequestRematch(fresh, s.slot)
		})
	})
}

func (s *Session) tryRestart() {
	if !s.hasDoc || !room.RematchReady(s.doc) {
		return
	}
	s.logWrite(s.update(context.Background(), room.Restart), "restart")
}

// DeclineRematch refuses the rematch and removes the room.
func (s *Session) DeclineRematch(ctx context.Context) error {
	return s.do(ctx, func() error {
		if !s.hasDoc {
			return ErrNoRoom
		}
		code := s.code
		err := s.update(ctx, func(fresh room.Room) (room.Fields, error) {
			return room.Decline(fresh, s.slot)
		})
		if err != nil {
			return err
		}
		s.leaveLocal("")
		return s.life.Teardown(ctx, code)
	})
}

func (s *Session) handleRematchWindow() {
	s.rematchTimer = nil
	s.rematchUntil = time.Time{}
	code := s.code
	ctx := context.Background()
	fresh, ok, err := s.store.Read(ctx, code)
	if err != nil {
		log.Warn().Str("room_code", code).Err(err).Msg("rematch window read failed")
		return
	}
	if !ok || fresh.Status != room.StatusEnded || fresh.RematchAccepted {
		return
	}
	log.Info().Str("room_code", code).Msg("rematch window closed")
	s.leaveLocal("Rematch window closed")
	if err := s.life.Teardown(ctx, code); err != nil {
		log.Warn().Str("room_code", code).Err(err).Msg("teardown failed")
	}
}

// Leave deletes the current room and returns to idle.
func (s *Session) Leave(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.code == "" {
			return ErrNoRoom
		}
		code := s.code
		s.leaveLocal("")
		return s.life.Teardown(ctx, code)
	})
}

// Info looks up details about an artist for the post-game summary. It does
// not touch the room.
func (s *Session) Info(ctx context.Context, artist string) (catalog.Info, error) {
	candidate, _, err := s.verifier.BestMatch(ctx, artist)
	if err != nil {
		return catalog.Info{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	info, err := catalog.Describe(ctx, s.catalog, candidate)
	if err != nil {
		return catalog.Info{}, fmt.Errorf("%w: %v", ErrInfoUnavailable, err)
	}
	return info, nil
}
