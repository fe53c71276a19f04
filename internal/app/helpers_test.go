package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
	"trivia-session-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStore counts state writes that reached a committed transaction.
type countingStore struct {
	*memory.SessionStore
	updates atomic.Int32
}

func (s *countingStore) WithSessionTx(ctx context.Context, sessionID string, fn func(tx app.SessionTx) error) error {
	var pending int32
	err := s.SessionStore.WithSessionTx(ctx, sessionID, func(tx app.SessionTx) error {
		pending = 0
		return fn(&countingTx{SessionTx: tx, updates: &pending})
	})
	if err == nil {
		s.updates.Add(pending)
	}
	return err
}

type countingTx struct {
	app.SessionTx
	updates *int32
}

func (t *countingTx) UpdateState(ctx context.Context, state domain.SessionState) error {
	*t.updates++
	return t.SessionTx.UpdateState(ctx, state)
}

type fixture struct {
	service *app.SessionService
	store   *countingStore
	clock   *fakeClock
	bank    map[int64]domain.Question
}

func testRules() app.Rules {
	return app.Rules{
		QuestionsPerSession: 1,
		QuestionTimeLimit:   20 * time.Second,
		SummaryDisplay:      8 * time.Second,
		MinParticipants:     1,
		PollInterval:        10 * time.Millisecond,
		Scoring:             game.Scoring{BasePoints: 10, SpeedBonusMax: 5},
	}
}

func newFixture(t *testing.T, rules app.Rules) *fixture {
	t.Helper()
	questions := testQuestions()
	bank := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		bank[q.ID] = q
	}
	store := &countingStore{SessionStore: memory.NewSessionStore()}
	clock := newFakeClock()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions), time.Hour)
	return &fixture{
		service: app.NewSessionServiceWithClock(store, repo, rules, clock.Now),
		store:   store,
		clock:   clock,
		bank:    bank,
	}
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Capital of France?", Answers: [4]string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectIndex: 0, Difficulty: "easy", Category: "geography"},
		{ID: 2, Text: "2 + 2?", Answers: [4]string{"3", "4", "5", "22"}, CorrectIndex: 1, Difficulty: "easy", Category: "math"},
		{ID: 3, Text: "Largest planet?", Answers: [4]string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectIndex: 2, Difficulty: "medium", Category: "science"},
		{ID: 4, Text: "Chemical symbol for gold?", Answers: [4]string{"Ag", "Gd", "Go", "Au"}, CorrectIndex: 3, Difficulty: "hard", Category: "science"},
	}
}

func players(ids ...string) []domain.Participant {
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Participant{UserID: id, DisplayName: "Player " + id})
	}
	return out
}

func (f *fixture) start(t *testing.T, participants ...string) domain.Session {
	t.Helper()
	session, err := f.service.StartSession(context.Background(), players(participants...))
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return session
}

func (f *fixture) state(t *testing.T, sessionID string) domain.SessionState {
	t.Helper()
	state, err := f.store.GetState(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return state
}

func (f *fixture) resolve(t *testing.T, sessionID, viewerID string) domain.StateView {
	t.Helper()
	view, err := f.service.ResolveState(context.Background(), sessionID, viewerID)
	if err != nil {
		t.Fatalf("resolve state: %v", err)
	}
	return view
}

// currentQuestion returns the question being played and where its correct
// answer is displayed.
func (f *fixture) currentQuestion(t *testing.T, sessionID string) (domain.Question, int) {
	t.Helper()
	id, ok := f.state(t, sessionID).CurrentQuestionID()
	if !ok {
		t.Fatalf("no current question")
	}
	q := f.bank[id]
	return q, game.PermutationFor(id, sessionID).DisplayIndexOf(q.CorrectIndex)
}

func (f *fixture) scores(t *testing.T, sessionID string) map[string]int {
	t.Helper()
	scores, err := f.store.ListScores(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	out := make(map[string]int, len(scores))
	for _, s := range scores {
		out[s.UserID] = s.Points
	}
	return out
}

func wrong(correct int) int {
	return (correct + 1) % domain.AnswerCount
}
