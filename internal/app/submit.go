package app

import (
	"context"
	"log"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
)

// SubmitAnswer records the answer a participant picked, by display position,
// for the current question. Preconditions are checked in order inside the
// session transaction: question phase, not yet answered, within the time
// limit. The answer insert and the score increment commit together.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, userID string, displayAnswerIndex int) (domain.SubmitResult, error) {
	if displayAnswerIndex < 0 || displayAnswerIndex >= domain.AnswerCount {
		return domain.SubmitResult{}, domain.ErrInvalidAnswerIndex
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if !session.HasParticipant(userID) {
		return domain.SubmitResult{}, domain.ErrNotParticipant
	}

	// A finished countdown opens the first question. Question deadlines are
	// not applied here, so a late answer still reads as expired.
	current, err := s.store.GetState(ctx, sessionID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if current.Phase == domain.PhaseWaiting {
		if err := s.advance(ctx, sessionID); err != nil {
			return domain.SubmitResult{}, err
		}
	}

	var result domain.SubmitResult
	err = s.store.WithSessionTx(ctx, sessionID, func(tx SessionTx) error {
		state, err := tx.GetState(ctx, sessionID)
		if err != nil {
			return err
		}
		if state.Phase != domain.PhaseQuestion {
			return domain.ErrPhaseMismatch
		}
		questionID, ok := state.CurrentQuestionID()
		if !ok {
			return domain.ErrPhaseMismatch
		}

		_, found, err := tx.FindAnswer(ctx, sessionID, userID, questionID)
		if err != nil {
			return err
		}
		if found {
			return domain.ErrAlreadyAnswered
		}

		now := s.now()
		elapsed := now.Sub(state.PhaseStartedAt)
		if elapsed > s.rules.QuestionTimeLimit {
			return domain.ErrTimeExpired
		}

		question, err := s.question(ctx, questionID)
		if err != nil {
			return err
		}
		perm := game.PermutationFor(questionID, sessionID)
		original := perm.OriginalIndexOf(displayAnswerIndex)
		correct := original == question.CorrectIndex
		points := s.rules.Scoring.Points(correct, elapsed.Seconds(), s.rules.QuestionTimeLimit.Seconds())

		err = tx.InsertAnswer(ctx, domain.Answer{
			SessionID:     sessionID,
			UserID:        userID,
			QuestionID:    questionID,
			AnswerIndex:   &original,
			IsCorrect:     correct,
			PointsAwarded: points,
			SubmittedAt:   now,
		})
		if err != nil {
			return err
		}
		if points > 0 {
			if err := tx.IncrementScore(ctx, sessionID, userID, points); err != nil {
				return err
			}
		}
		result = domain.SubmitResult{IsCorrect: correct, PointsAwarded: points}
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	// This answer may complete the answered set. The answer is already
	// committed, so a failed check is left for the next read to redo.
	if err := s.advance(ctx, sessionID); err != nil {
		log.Printf("session %s: transition check after answer failed: %v", sessionID, err)
	}
	return result, nil
}
