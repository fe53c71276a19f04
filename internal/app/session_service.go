package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
)

// Rules holds the timing and scoring knobs of a session. They never change
// the structure of a session, only its pace and point values.
type Rules struct {
	QuestionsPerSession int
	QuestionTimeLimit   time.Duration
	SummaryDisplay      time.Duration
	// Countdown is the optional waiting phase before the first question.
	Countdown       time.Duration
	MinParticipants int
	PollInterval    time.Duration
	Scoring         game.Scoring
}

// DefaultRules mirrors the shipped config/config.yaml.
func DefaultRules() Rules {
	return Rules{
		QuestionsPerSession: 10,
		QuestionTimeLimit:   20 * time.Second,
		SummaryDisplay:      8 * time.Second,
		MinParticipants:     2,
		PollInterval:        2 * time.Second,
		Scoring:             game.Scoring{BasePoints: 10, SpeedBonusMax: 5},
	}
}

// SessionService contains the trivia session use cases. It keeps no session
// state of its own; every call loads what it needs from the store.
type SessionService struct {
	store     SessionStore
	questions QuestionBank
	selector  *game.Selector
	rules     Rules
	now       func() time.Time
}

func NewSessionService(store SessionStore, questions QuestionBank, rules Rules) *SessionService {
	return NewSessionServiceWithClock(store, questions, rules, time.Now)
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store SessionStore, questions QuestionBank, rules Rules, now func() time.Time) *SessionService {
	return &SessionService{
		store:     store,
		questions: questions,
		selector:  game.NewSelector(),
		rules:     rules,
		now:       now,
	}
}

// Rules returns the rules the service was built with.
func (s *SessionService) Rules() Rules {
	return s.rules
}

// StartSession creates a session for the given participants with a freshly
// sampled question order.
func (s *SessionService) StartSession(ctx context.Context, participants []domain.Participant) (domain.Session, error) {
	unique := dedupeParticipants(participants)
	minimum := s.rules.MinParticipants
	if minimum < 1 {
		minimum = 1
	}
	if len(unique) < minimum {
		return domain.Session{}, domain.ErrNotEnoughParticipants
	}

	ids, err := s.questions.ListQuestionIDs(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("list questions: %w", err)
	}
	order, err := s.selector.Select(ids, s.rules.QuestionsPerSession)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	session := domain.Session{
		ID:           uuid.NewString(),
		Participants: unique,
		Status:       domain.StatusActive,
		CreatedAt:    now,
	}
	state := domain.SessionState{
		SessionID:      session.ID,
		QuestionOrder:  order,
		Phase:          domain.PhaseQuestion,
		PhaseStartedAt: now,
		UpdatedAt:      now,
	}
	if s.rules.Countdown > 0 {
		session.Status = domain.StatusPending
		state.Phase = domain.PhaseWaiting
	}

	if err := s.store.CreateSession(ctx, session, state); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	log.Printf("session %s started: %d participants, %d questions", session.ID, len(unique), len(order))
	return session, nil
}

// FinishSession force-finishes a session. Finishing a finished session is a no-op.
func (s *SessionService) FinishSession(ctx context.Context, sessionID string) error {
	finished := false
	err := s.store.WithSessionTx(ctx, sessionID, func(tx SessionTx) error {
		state, err := tx.GetState(ctx, sessionID)
		if err != nil {
			return err
		}
		if state.Phase == domain.PhaseFinished {
			return nil
		}
		finished = true
		return finishLocked(ctx, tx, state, s.now())
	})
	if err != nil {
		return err
	}
	if finished {
		log.Printf("session %s finished by supervisor", sessionID)
	}
	return nil
}

// History lists finished sessions, newest first.
func (s *SessionService) History(ctx context.Context, limit int) ([]domain.Session, error) {
	return s.store.ListSessions(ctx, domain.StatusFinished, limit)
}

func (s *SessionService) question(ctx context.Context, id int64) (domain.Question, error) {
	found, err := s.questions.GetQuestions(ctx, []int64{id})
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question %d: %w", id, err)
	}
	q, ok := found[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func dedupeParticipants(in []domain.Participant) []domain.Participant {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Participant, 0, len(in))
	for _, p := range in {
		if p.UserID == "" {
			continue
		}
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		if p.DisplayName == "" {
			p.DisplayName = p.UserID
		}
		out = append(out, p)
	}
	return out
}
