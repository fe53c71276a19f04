package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// maxTxAttempts bounds optimistic retries when a watched key changes.
const maxTxAttempts = 16

// ErrTxConflict is returned when a session transaction kept losing the race.
var ErrTxConflict = errors.New("redis session transaction conflict")

// reader is the subset of commands shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// SessionStore keeps sessions in Redis. Layout per session:
//
//	trivia:session:{id}          JSON session
//	trivia:session:{id}:state    JSON session state
//	trivia:session:{id}:answers  hash "{questionID}:{userID}" -> JSON answer
//	trivia:session:{id}:scores   hash userID -> points
//
// plus one sorted set per status (trivia:sessions:{status}) scored by
// creation time. Session transactions use WATCH/MULTI on the session keys
// and are retried when another transaction commits first.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.Session, state domain.SessionState) error {
	rawSession, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	rawState, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), rawSession, s.ttl)
		pipe.Set(ctx, stateKey(session.ID), rawState, s.ttl)
		for _, p := range session.Participants {
			pipe.HSet(ctx, scoresKey(session.ID), p.UserID, 0)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, scoresKey(session.ID), s.ttl)
		}
		pipe.ZAdd(ctx, statusKey(session.Status), redis.Z{Score: createdScore(session), Member: session.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) WithSessionTx(ctx context.Context, sessionID string, fn func(tx app.SessionTx) error) error {
	keys := []string{sessionKey(sessionID), stateKey(sessionID), answersKey(sessionID), scoresKey(sessionID)}
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			if _, err := getState(ctx, rtx, sessionID); err != nil {
				return err
			}
			tx := &redisTx{
				store:     s,
				rtx:       rtx,
				sessionID: sessionID,
				inserted:  make(map[string]domain.Answer),
				deltas:    make(map[string]int),
				absent:    make(map[string]struct{}),
				listed:    make(map[int64]map[string]struct{}),
			}
			if err := fn(tx); err != nil {
				return err
			}
			return tx.flush(ctx)
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

func (s *SessionStore) ListSessions(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, statusKey(status), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		session, err := getSession(ctx, s.client, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// expired by TTL; drop the stale index entry
			s.client.ZRem(ctx, statusKey(status), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return getSession(ctx, s.client, sessionID)
}

func (s *SessionStore) GetState(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return getState(ctx, s.client, sessionID)
}

func (s *SessionStore) FindAnswer(ctx context.Context, sessionID, userID string, questionID int64) (domain.Answer, bool, error) {
	return findAnswer(ctx, s.client, sessionID, userID, questionID)
}

func (s *SessionStore) ListAnswers(ctx context.Context, sessionID string, questionID int64) ([]domain.Answer, error) {
	return listAnswers(ctx, s.client, sessionID, &questionID)
}

func (s *SessionStore) ListSessionAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	return listAnswers(ctx, s.client, sessionID, nil)
}

func (s *SessionStore) ListScores(ctx context.Context, sessionID string) ([]domain.Score, error) {
	session, err := getSession(ctx, s.client, sessionID)
	if err != nil {
		return nil, err
	}
	return listScores(ctx, s.client, session, nil)
}

// redisTx reads through the watched connection and buffers writes until
// fn returns; flush then applies them in one MULTI/EXEC. Reads see the
// buffered writes.
type redisTx struct {
	store     *SessionStore
	rtx       *redis.Tx
	sessionID string

	state    *domain.SessionState
	status   *domain.SessionStatus
	inserted map[string]domain.Answer
	order    []string
	deltas   map[string]int

	// answers this transaction already read as absent, by field; listed
	// questions count every field not returned as absent.
	absent map[string]struct{}
	listed map[int64]map[string]struct{}
}

var _ app.SessionTx = (*redisTx)(nil)

func (t *redisTx) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := getSession(ctx, t.rtx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if t.status != nil {
		session.Status = *t.status
	}
	return session, nil
}

func (t *redisTx) GetState(ctx context.Context, sessionID string) (domain.SessionState, error) {
	if t.state != nil {
		state := *t.state
		state.QuestionOrder = append([]int64(nil), t.state.QuestionOrder...)
		return state, nil
	}
	return getState(ctx, t.rtx, sessionID)
}

func (t *redisTx) FindAnswer(ctx context.Context, sessionID, userID string, questionID int64) (domain.Answer, bool, error) {
	field := answerField(questionID, userID)
	if a, ok := t.inserted[field]; ok {
		return a, true, nil
	}
	a, found, err := findAnswer(ctx, t.rtx, sessionID, userID, questionID)
	if err == nil && !found {
		t.absent[field] = struct{}{}
	}
	return a, found, err
}

func (t *redisTx) ListAnswers(ctx context.Context, sessionID string, questionID int64) ([]domain.Answer, error) {
	stored, err := listAnswers(ctx, t.rtx, sessionID, &questionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, a := range stored {
		seen[answerField(a.QuestionID, a.UserID)] = struct{}{}
	}
	t.listed[questionID] = seen
	for _, field := range t.order {
		if a := t.inserted[field]; a.QuestionID == questionID {
			stored = append(stored, a)
		}
	}
	return stored, nil
}

func (t *redisTx) ListSessionAnswers(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	stored, err := listAnswers(ctx, t.rtx, sessionID, nil)
	if err != nil {
		return nil, err
	}
	for _, field := range t.order {
		stored = append(stored, t.inserted[field])
	}
	return stored, nil
}

func (t *redisTx) ListScores(ctx context.Context, sessionID string) ([]domain.Score, error) {
	session, err := getSession(ctx, t.rtx, sessionID)
	if err != nil {
		return nil, err
	}
	return listScores(ctx, t.rtx, session, t.deltas)
}

func (t *redisTx) UpdateState(_ context.Context, state domain.SessionState) error {
	if state.SessionID != t.sessionID {
		return domain.ErrSessionNotFound
	}
	copied := state
	copied.QuestionOrder = append([]int64(nil), state.QuestionOrder...)
	t.state = &copied
	return nil
}

func (t *redisTx) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	field := answerField(answer.QuestionID, answer.UserID)
	if _, ok := t.inserted[field]; ok {
		return domain.ErrAlreadyAnswered
	}
	_, found, err := findAnswer(ctx, t.rtx, t.sessionID, answer.UserID, answer.QuestionID)
	if err != nil {
		return err
	}
	if found {
		// Written by a commit that landed after this transaction read the
		// answers: EXEC would abort anyway, so retry on fresh data.
		if t.readAsAbsent(field, answer.QuestionID) {
			return redis.TxFailedErr
		}
		return domain.ErrAlreadyAnswered
	}
	t.inserted[field] = answer
	t.order = append(t.order, field)
	return nil
}

func (t *redisTx) readAsAbsent(field string, questionID int64) bool {
	if _, ok := t.absent[field]; ok {
		return true
	}
	seen, ok := t.listed[questionID]
	if !ok {
		return false
	}
	_, present := seen[field]
	return !present
}

func (t *redisTx) IncrementScore(_ context.Context, _ string, userID string, points int) error {
	t.deltas[userID] += points
	return nil
}

func (t *redisTx) SetSessionStatus(_ context.Context, _ string, status domain.SessionStatus) error {
	t.status = &status
	return nil
}

func (t *redisTx) flush(ctx context.Context) error {
	if t.state == nil && t.status == nil && len(t.order) == 0 && len(t.deltas) == 0 {
		return nil
	}

	var (
		rawSession []byte
		oldStatus  domain.SessionStatus
		session    domain.Session
	)
	if t.status != nil {
		var err error
		session, err = getSession(ctx, t.rtx, t.sessionID)
		if err != nil {
			return err
		}
		oldStatus = session.Status
		session.Status = *t.status
		if rawSession, err = json.Marshal(session); err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
	}
	var rawState []byte
	if t.state != nil {
		var err error
		if rawState, err = json.Marshal(t.state); err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
	}
	rawAnswers := make(map[string][]byte, len(t.order))
	for _, field := range t.order {
		raw, err := json.Marshal(t.inserted[field])
		if err != nil {
			return fmt.Errorf("encode answer: %w", err)
		}
		rawAnswers[field] = raw
	}

	ttl := t.store.ttl
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if rawState != nil {
			pipe.Set(ctx, stateKey(t.sessionID), rawState, ttl)
		}
		if rawSession != nil {
			pipe.Set(ctx, sessionKey(t.sessionID), rawSession, ttl)
			if oldStatus != session.Status {
				pipe.ZRem(ctx, statusKey(oldStatus), t.sessionID)
				pipe.ZAdd(ctx, statusKey(session.Status), redis.Z{Score: createdScore(session), Member: t.sessionID})
			}
		}
		for _, field := range t.order {
			pipe.HSetNX(ctx, answersKey(t.sessionID), field, rawAnswers[field])
		}
		for userID, delta := range t.deltas {
			pipe.HIncrBy(ctx, scoresKey(t.sessionID), userID, int64(delta))
		}
		if ttl > 0 {
			pipe.Expire(ctx, answersKey(t.sessionID), ttl)
			pipe.Expire(ctx, scoresKey(t.sessionID), ttl)
			if rawState == nil {
				pipe.Expire(ctx, stateKey(t.sessionID), ttl)
			}
			if rawSession == nil {
				pipe.Expire(ctx, sessionKey(t.sessionID), ttl)
			}
		}
		return nil
	})
	return err
}

func getSession(ctx context.Context, r reader, sessionID string) (domain.Session, error) {
	raw, err := r.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func getState(ctx context.Context, r reader, sessionID string) (domain.SessionState, error) {
	raw, err := r.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("get state: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

func findAnswer(ctx context.Context, r reader, sessionID, userID string, questionID int64) (domain.Answer, bool, error) {
	raw, err := r.HGet(ctx, answersKey(sessionID), answerField(questionID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("find answer: %w", err)
	}
	var a domain.Answer
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Answer{}, false, fmt.Errorf("decode answer: %w", err)
	}
	return a, true, nil
}

// listAnswers returns stored answers ordered by submission time, optionally
// only those for one question.
func listAnswers(ctx context.Context, r reader, sessionID string, questionID *int64) ([]domain.Answer, error) {
	all, err := r.HGetAll(ctx, answersKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(all))
	for _, raw := range all {
		var a domain.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		if questionID != nil && a.QuestionID != *questionID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func listScores(ctx context.Context, r reader, session domain.Session, deltas map[string]int) ([]domain.Score, error) {
	raw, err := r.HGetAll(ctx, scoresKey(session.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	out := make([]domain.Score, 0, len(session.Participants))
	for _, p := range session.Participants {
		points := 0
		if v, ok := raw[p.UserID]; ok {
			if points, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("decode score of %s: %w", p.UserID, err)
			}
		}
		points += deltas[p.UserID]
		out = append(out, domain.Score{SessionID: session.ID, UserID: p.UserID, Points: points})
	}
	return out, nil
}

func createdScore(session domain.Session) float64 {
	return float64(session.CreatedAt.UnixMilli())
}

func sessionKey(id string) string {
	return "trivia:session:" + id
}

func stateKey(id string) string {
	return sessionKey(id) + ":state"
}

func answersKey(id string) string {
	return sessionKey(id) + ":answers"
}

func scoresKey(id string) string {
	return sessionKey(id) + ":scores"
}

func statusKey(status domain.SessionStatus) string {
	return "trivia:sessions:" + string(status)
}

func answerField(questionID int64, userID string) string {
	return strconv.FormatInt(questionID, 10) + ":" + userID
}
