package app

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Subscription is a live feed of state views for one viewer.
type Subscription struct {
	updates chan domain.StateView
	stop    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// Updates is closed after the finished view, on Cancel, when the subscribe
// context is done, or when a poll fails.
func (s *Subscription) Updates() <-chan domain.StateView {
	return s.updates
}

// Err returns the poll failure that closed Updates, or nil when the feed
// ended normally. It is meaningful once Updates is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the feed. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Subscribe streams state views of a session to one viewer. The session is
// polled with ResolveState every PollInterval and a view is sent only when
// its JSON encoding differs from the last one sent. Callers must Cancel the
// subscription to avoid leaks.
//
// The first view is resolved synchronously so unknown sessions fail here.
func (s *SessionService) Subscribe(ctx context.Context, sessionID, viewerID string) (*Subscription, error) {
	first, err := s.ResolveState(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}

	interval := s.rules.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	sub := &Subscription{
		updates: make(chan domain.StateView, 1),
		stop:    make(chan struct{}),
	}

	go func() {
		defer close(sub.updates)
		// Disconnect listener, removed when the loop exits.
		unregister := context.AfterFunc(ctx, sub.Cancel)
		defer unregister()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []byte
		view := first
		for !sub.stopped() {
			encoded, err := json.Marshal(view)
			if err != nil {
				log.Printf("subscription %s/%s: encode view: %v", sessionID, viewerID, err)
				sub.fail(err)
				return
			}
			if string(encoded) != string(last) {
				select {
				case sub.updates <- view:
					last = encoded
				case <-sub.stop:
					return
				}
			}
			if view.Phase == domain.PhaseFinished {
				return
			}

			select {
			case <-ticker.C:
			case <-sub.stop:
				return
			}

			view, err = s.ResolveState(ctx, sessionID, viewerID)
			if err != nil {
				if ctx.Err() == nil && !sub.stopped() {
					log.Printf("subscription %s/%s: resolve state: %v", sessionID, viewerID, err)
					sub.fail(err)
				}
				return
			}
		}
	}()

	return sub, nil
}
