package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
)

// Leaderboard returns the ranked scores of a session after applying any
// pending transition.
func (s *SessionService) Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	if err := s.advance(ctx, sessionID); err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.leaderboardFor(ctx, session)
}

func (s *SessionService) leaderboardFor(ctx context.Context, session domain.Session) ([]domain.LeaderboardEntry, error) {
	scores, err := s.store.ListScores(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return rankLeaderboard(session, scores), nil
}

// rankLeaderboard sorts by score descending, then user ID ascending, and
// assigns positional ranks.
func rankLeaderboard(session domain.Session, scores []domain.Score) []domain.LeaderboardEntry {
	points := make(map[string]int, len(scores))
	for _, sc := range scores {
		points[sc.UserID] = sc.Points
	}
	entries := make([]domain.LeaderboardEntry, 0, len(session.Participants))
	for _, p := range session.Participants {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       points[p.UserID],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// DetailedResults rebuilds the per-question breakdown of a session. Display
// order is recomputed from the shuffle engine, nothing about it is stored.
func (s *SessionService) DetailedResults(ctx context.Context, sessionID string) (domain.Results, error) {
	if err := s.advance(ctx, sessionID); err != nil {
		return domain.Results{}, err
	}

	var (
		session domain.Session
		state   domain.SessionState
		answers []domain.Answer
		scores  []domain.Score
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		session, err = s.store.GetSession(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		state, err = s.store.GetState(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		answers, err = s.store.ListSessionAnswers(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		scores, err = s.store.ListScores(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Results{}, err
	}

	questions, err := s.questions.GetQuestions(ctx, state.QuestionOrder)
	if err != nil {
		return domain.Results{}, fmt.Errorf("load questions: %w", err)
	}

	byQuestion := make(map[int64][]domain.Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	results := domain.Results{
		SessionID:   sessionID,
		Phase:       state.Phase,
		Leaderboard: rankLeaderboard(session, scores),
		Questions:   make([]domain.QuestionResult, 0, len(state.QuestionOrder)),
	}
	for i, questionID := range state.QuestionOrder {
		q, ok := questions[questionID]
		if !ok {
			return domain.Results{}, fmt.Errorf("question %d: %w", questionID, domain.ErrQuestionNotFound)
		}
		perm := game.PermutationFor(questionID, sessionID)
		results.Questions = append(results.Questions, domain.QuestionResult{
			Index:         i,
			QuestionID:    questionID,
			QuestionText:  q.Text,
			Answers:       perm.ToDisplayOrder(q.Answers),
			CorrectIndex:  perm.DisplayIndexOf(q.CorrectIndex),
			Difficulty:    q.Difficulty,
			Category:      q.Category,
			PlayerResults: playerResults(session, byQuestion[questionID], perm),
		})
	}
	return results, nil
}

// GlobalLeaderboard totals scores over finished sessions. A limit of zero or
// less returns every user.
func (s *SessionService) GlobalLeaderboard(ctx context.Context, limit int) ([]domain.GlobalLeaderboardEntry, error) {
	sessions, err := s.store.ListSessions(ctx, domain.StatusFinished, 0)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		totals = make(map[string]*domain.GlobalLeaderboardEntry)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, session := range sessions {
		g.Go(func() error {
			scores, err := s.store.ListScores(gctx, session.ID)
			if err != nil {
				return err
			}
			points := make(map[string]int, len(scores))
			for _, sc := range scores {
				points[sc.UserID] = sc.Points
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range session.Participants {
				entry, ok := totals[p.UserID]
				if !ok {
					entry = &domain.GlobalLeaderboardEntry{UserID: p.UserID, DisplayName: p.DisplayName}
					totals[p.UserID] = entry
				}
				entry.TotalScore += points[p.UserID]
				entry.SessionsPlayed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]domain.GlobalLeaderboardEntry, 0, len(totals))
	for _, e := range totals {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
