package app

import (
	"context"
	"log"
	"time"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
)

// transition records a phase change made by advance, for logging after commit.
type transition struct {
	from, to domain.Phase
	index    int
	timeouts int
}

// advance performs at most one pending transition for a session. It is the
// single check-and-transition routine run by every read and write entry
// point; there is no timer driving sessions forward.
//
// The phase is re-read inside the session transaction, so concurrent callers
// converge on one transition and the rest observe the new phase and write
// nothing.
func (s *SessionService) advance(ctx context.Context, sessionID string) error {
	var done *transition
	err := s.store.WithSessionTx(ctx, sessionID, func(tx SessionTx) error {
		done = nil
		state, err := tx.GetState(ctx, sessionID)
		if err != nil {
			return err
		}
		now := s.now()
		elapsed := now.Sub(state.PhaseStartedAt)

		switch state.Phase {
		case domain.PhaseWaiting:
			if elapsed <= s.rules.Countdown {
				return nil
			}
			state.Phase = domain.PhaseQuestion
			state.PhaseStartedAt = now
			state.UpdatedAt = now
			if err := tx.UpdateState(ctx, state); err != nil {
				return err
			}
			if err := tx.SetSessionStatus(ctx, sessionID, domain.StatusActive); err != nil {
				return err
			}
			done = &transition{from: domain.PhaseWaiting, to: domain.PhaseQuestion, index: state.CurrentQuestionIndex}
			return nil

		case domain.PhaseQuestion:
			t, err := s.closeQuestion(ctx, tx, state, now, elapsed)
			done = t
			return err

		case domain.PhaseSummary:
			if elapsed <= s.rules.SummaryDisplay {
				return nil
			}
			next := state.CurrentQuestionIndex + 1
			if next >= len(state.QuestionOrder) {
				done = &transition{from: domain.PhaseSummary, to: domain.PhaseFinished, index: state.CurrentQuestionIndex}
				return finishLocked(ctx, tx, state, now)
			}
			state.CurrentQuestionIndex = next
			state.Phase = domain.PhaseQuestion
			state.PhaseStartedAt = now
			state.UpdatedAt = now
			done = &transition{from: domain.PhaseSummary, to: domain.PhaseQuestion, index: next}
			return tx.UpdateState(ctx, state)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if done != nil {
		log.Printf("session %s: %s -> %s (question %d, %d timeouts)", sessionID, done.from, done.to, done.index, done.timeouts)
	}
	return nil
}

// closeQuestion flips question -> summary once every participant answered or
// the time limit passed. On timeout the missing answers are recorded in the
// same transaction as the flip.
func (s *SessionService) closeQuestion(ctx context.Context, tx SessionTx, state domain.SessionState, now time.Time, elapsed time.Duration) (*transition, error) {
	questionID, ok := state.CurrentQuestionID()
	if !ok {
		return &transition{from: domain.PhaseQuestion, to: domain.PhaseFinished, index: state.CurrentQuestionIndex},
			finishLocked(ctx, tx, state, now)
	}

	session, err := tx.GetSession(ctx, state.SessionID)
	if err != nil {
		return nil, err
	}
	answers, err := tx.ListAnswers(ctx, state.SessionID, questionID)
	if err != nil {
		return nil, err
	}

	allAnswered := len(answers) >= len(session.Participants)
	if !allAnswered && elapsed <= s.rules.QuestionTimeLimit {
		return nil, nil
	}

	timeouts := 0
	if !allAnswered {
		answered := make(map[string]struct{}, len(answers))
		for _, a := range answers {
			answered[a.UserID] = struct{}{}
		}
		for _, p := range session.Participants {
			if _, ok := answered[p.UserID]; ok {
				continue
			}
			err := tx.InsertAnswer(ctx, domain.Answer{
				SessionID:   state.SessionID,
				UserID:      p.UserID,
				QuestionID:  questionID,
				AnswerIndex: nil,
				IsCorrect:   false,
				SubmittedAt: now,
			})
			if err != nil {
				return nil, err
			}
			timeouts++
		}
	}

	state.Phase = domain.PhaseSummary
	state.PhaseStartedAt = now
	state.UpdatedAt = now
	if err := tx.UpdateState(ctx, state); err != nil {
		return nil, err
	}
	return &transition{from: domain.PhaseQuestion, to: domain.PhaseSummary, index: state.CurrentQuestionIndex, timeouts: timeouts}, nil
}

// finishLocked moves a session to its terminal phase. Callers hold the
// session transaction.
func finishLocked(ctx context.Context, tx SessionTx, state domain.SessionState, now time.Time) error {
	state.Phase = domain.PhaseFinished
	state.UpdatedAt = now
	if err := tx.UpdateState(ctx, state); err != nil {
		return err
	}
	return tx.SetSessionStatus(ctx, state.SessionID, domain.StatusFinished)
}

// ResolveState applies any pending transition and returns the view of the
// session for viewerID. Viewers that are not participants get a read-only
// view: the question reads as already answered with no selection.
func (s *SessionService) ResolveState(ctx context.Context, sessionID, viewerID string) (domain.StateView, error) {
	if err := s.advance(ctx, sessionID); err != nil {
		return domain.StateView{}, err
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.StateView{}, err
	}
	state, err := s.store.GetState(ctx, sessionID)
	if err != nil {
		return domain.StateView{}, err
	}
	leaderboard, err := s.leaderboardFor(ctx, session)
	if err != nil {
		return domain.StateView{}, err
	}

	isParticipant := session.HasParticipant(viewerID)
	view := domain.StateView{
		SessionID:            session.ID,
		Phase:                state.Phase,
		CurrentQuestionIndex: state.CurrentQuestionIndex,
		TotalQuestions:       len(state.QuestionOrder),
		IsParticipant:        isParticipant,
		Leaderboard:          leaderboard,
	}
	elapsed := s.now().Sub(state.PhaseStartedAt)

	switch state.Phase {
	case domain.PhaseWaiting:
		view.RemainingMs = remainingMs(s.rules.Countdown, elapsed)

	case domain.PhaseQuestion:
		questionID, ok := state.CurrentQuestionID()
		if !ok {
			return domain.StateView{}, domain.ErrQuestionNotFound
		}
		question, err := s.question(ctx, questionID)
		if err != nil {
			return domain.StateView{}, err
		}
		answers, err := s.store.ListAnswers(ctx, sessionID, questionID)
		if err != nil {
			return domain.StateView{}, err
		}
		perm := game.PermutationFor(questionID, sessionID)

		qv := &domain.QuestionView{
			ID:                question.ID,
			Text:              question.Text,
			Answers:           perm.ToDisplayOrder(question.Answers),
			Difficulty:        question.Difficulty,
			Category:          question.Category,
			HasAnswered:       true,
			AnsweredCount:     len(answers),
			TotalParticipants: len(session.Participants),
		}
		if isParticipant {
			qv.HasAnswered = false
			for _, a := range answers {
				if a.UserID == viewerID {
					qv.HasAnswered = true
					qv.SelectedIndex = displayIndex(a.AnswerIndex, perm)
					break
				}
			}
		}
		view.RemainingMs = remainingMs(s.rules.QuestionTimeLimit, elapsed)
		view.Question = qv

	case domain.PhaseSummary:
		questionID, ok := state.CurrentQuestionID()
		if !ok {
			return domain.StateView{}, domain.ErrQuestionNotFound
		}
		question, err := s.question(ctx, questionID)
		if err != nil {
			return domain.StateView{}, err
		}
		answers, err := s.store.ListAnswers(ctx, sessionID, questionID)
		if err != nil {
			return domain.StateView{}, err
		}
		perm := game.PermutationFor(questionID, sessionID)

		view.RemainingMs = remainingMs(s.rules.SummaryDisplay, elapsed)
		view.Summary = &domain.SummaryView{
			QuestionText:  question.Text,
			Answers:       perm.ToDisplayOrder(question.Answers),
			CorrectIndex:  perm.DisplayIndexOf(question.CorrectIndex),
			PlayerResults: playerResults(session, answers, perm),
		}
	}

	return view, nil
}

func remainingMs(limit, elapsed time.Duration) int64 {
	if elapsed >= limit {
		return 0
	}
	return (limit - elapsed).Milliseconds()
}

// displayIndex maps a stored canonical index to display order; nil stays nil.
func displayIndex(original *int, perm game.Permutation) *int {
	if original == nil {
		return nil
	}
	d := perm.DisplayIndexOf(*original)
	return &d
}

// playerResults lists the recorded answers in participant order.
func playerResults(session domain.Session, answers []domain.Answer, perm game.Permutation) []domain.PlayerResult {
	byUser := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byUser[a.UserID] = a
	}
	results := make([]domain.PlayerResult, 0, len(answers))
	for _, p := range session.Participants {
		a, ok := byUser[p.UserID]
		if !ok {
			continue
		}
		results = append(results, domain.PlayerResult{
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			AnswerIndex:   displayIndex(a.AnswerIndex, perm),
			IsCorrect:     a.IsCorrect,
			PointsAwarded: a.PointsAwarded,
		})
	}
	return results
}
