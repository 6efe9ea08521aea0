package store

import (
	"sync"

	"github.com/google/uuid"
)

// subscriber delivers snapshots to one handler on its own goroutine. Only
// the newest undelivered snapshot is kept, so a slow handler sees the latest
// document and never an older one after a newer one.
type subscriber struct {
	id     string
	code   string
	fn     Handler
	mu     sync.Mutex
	latest *Snapshot
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(code string, fn Handler) *subscriber {
	s := &subscriber{
		id:     uuid.NewString(),
		code:   code,
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		s.mu.Lock()
		snap := s.latest
		s.latest = nil
		s.mu.Unlock()
		if snap == nil {
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.fn(*snap)
	}
}

type subscriberSet struct {
	mu   sync.Mutex
	subs map[string]map[string]*subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]map[string]*subscriber)}
}

func (set *subscriberSet) add(s *subscriber) {
	set.mu.Lock()
	defer set.mu.Unlock()
	group := set.subs[s.code]
	if group == nil {
		group = make(map[string]*subscriber)
		set.subs[s.code] = group
	}
	group[s.id] = s
}

func (set *subscriberSet) remove(s *subscriber) {
	set.mu.Lock()
	group := set.subs[s.code]
	if group != nil {
		delete(group, s.id)
		if len(group) == 0 {
			delete(set.subs, s.code)
		}
	}
	set.mu.Unlock()
	s.close()
}

func (set *subscriberSet) publish(snap Snapshot) {
	set.mu.Lock()
	group := set.subs[snap.Code]
	targets := make([]*subscriber, 0, len(group))
	for _, s := range group {
		targets = append(targets, s)
	}
	set.mu.Unlock()
	for _, s := range targets {
		s.offer(snap)
	}
}
