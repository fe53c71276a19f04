package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotParticipant is returned when a non-participant tries to answer.
	ErrNotParticipant = errors.New("user is not a participant in this session")
	// ErrQuestionNotFound indicates a question in the session order is missing from the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrEmptyQuestionBank is returned when no questions can be selected.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
	// ErrNotEnoughParticipants is returned when a session is started with too few users.
	ErrNotEnoughParticipants = errors.New("not enough participants to start a session")
	// ErrInvalidAnswerIndex is a validation error for an out-of-range answer.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")
	// ErrPhaseMismatch is returned when an answer arrives outside the question phase.
	ErrPhaseMismatch = errors.New("session is not in the question phase")
	// ErrAlreadyAnswered is returned on a second answer to the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrTimeExpired is returned when the question time limit has passed.
	ErrTimeExpired = errors.New("time limit expired")
)
