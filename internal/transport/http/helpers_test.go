package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
	"trivia-session-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*httptest.Server, *app.SessionService, *testClock) {
	t.Helper()
	return newTestServerWithStore(t, memory.NewSessionStore())
}

func newTestServerWithStore(t *testing.T, store app.SessionStore) (*httptest.Server, *app.SessionService, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(testQuestions()), time.Minute)
	rules := app.Rules{
		QuestionsPerSession: 2,
		QuestionTimeLimit:   20 * time.Second,
		SummaryDisplay:      8 * time.Second,
		MinParticipants:     2,
		PollInterval:        20 * time.Millisecond,
		Scoring:             game.Scoring{BasePoints: 10, SpeedBonusMax: 5},
	}
	service := app.NewSessionServiceWithClock(store, questions, rules, clock.Now)

	mux := http.NewServeMux()
	NewRESTHandler(service).Register(mux)
	mux.HandleFunc("GET /sessions/{id}/stream", NewSSEHandler(service).ServeSSE)
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service, clock
}

var errStoreDown = errors.New("store down")

// flakyStore fails every session transaction once down is set.
type flakyStore struct {
	*memory.SessionStore
	down atomic.Bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{SessionStore: memory.NewSessionStore()}
}

func (s *flakyStore) WithSessionTx(ctx context.Context, sessionID string, fn func(tx app.SessionTx) error) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.SessionStore.WithSessionTx(ctx, sessionID, fn)
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Capital of France?", Answers: [4]string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectIndex: 0, Difficulty: "easy", Category: "geography"},
		{ID: 2, Text: "2 + 2?", Answers: [4]string{"3", "4", "5", "22"}, CorrectIndex: 1, Difficulty: "easy", Category: "math"},
		{ID: 3, Text: "Largest planet?", Answers: [4]string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectIndex: 2, Difficulty: "medium", Category: "science"},
	}
}

func testParticipants() []domain.Participant {
	return []domain.Participant{{UserID: "u1", DisplayName: "Alice"}, {UserID: "u2", DisplayName: "Bob"}}
}

// correctDisplayIndex returns where the right answer is shown for the
// question currently played in sessionID.
func correctDisplayIndex(t *testing.T, service *app.SessionService, sessionID string) int {
	t.Helper()
	view := resolve(t, service, sessionID, "u1")
	if view.Question == nil {
		t.Fatalf("expected question view, got phase %s", view.Phase)
	}
	for _, q := range testQuestions() {
		if q.ID == view.Question.ID {
			return game.PermutationFor(q.ID, sessionID).DisplayIndexOf(q.CorrectIndex)
		}
	}
	t.Fatalf("unknown question %d", view.Question.ID)
	return -1
}

func resolve(t *testing.T, service *app.SessionService, sessionID, viewerID string) domain.StateView {
	t.Helper()
	view, err := service.ResolveState(context.Background(), sessionID, viewerID)
	if err != nil {
		t.Fatalf("resolve state: %v", err)
	}
	return view
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}
