package voting

import (
	"errors"
	"fmt"
)

// Validation failures fall into four kinds the HTTP layer maps to statuses.
// Anything else coming out of the engine is an infrastructure error.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInvalidInput
	KindBusinessRule
	KindAuthorization
)

var (
	// ErrVotingNotFound means the voting does not exist.
	ErrVotingNotFound = errors.New("voting not found")

	// ErrInvalidOptions means the response-option list failed validation:
	// fewer than two entries, a blank or punctuation-only entry, or a
	// case-insensitive duplicate after trimming.
	ErrInvalidOptions = errors.New("invalid response options")

	// ErrNoHouses means voting creation was requested with no target houses.
	ErrNoHouses = errors.New("at least one house is required")

	// ErrEmptyQuestion means voting creation was requested with a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrInvalidResponse means the submitted response is not one of the
	// voting's response options.
	ErrInvalidResponse = errors.New("response is not a valid option")

	// ErrVotingCompleted means the voting is already closed.
	ErrVotingCompleted = errors.New("voting is already completed")

	// ErrApartmentAlreadyVoted means the addressed apartment's record already
	// carries a response (web channel).
	ErrApartmentAlreadyVoted = errors.New("apartment has already voted")

	// ErrNotParticipant means the user holds no ownership records in the voting.
	ErrNotParticipant = errors.New("user is not a participant of this voting")

	// ErrNotApartmentOwner means none of the user's records matches the
	// addressed apartment (web channel).
	ErrNotApartmentOwner = errors.New("user does not own this apartment in the voting")
)

// AlreadyVotedError is the telegram-channel "already voted" signal. It carries
// the previous response so the bot can echo the user's earlier choice.
type AlreadyVotedError struct {
	Previous string
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("user has already voted: %q", e.Previous)
}

// Kind classifies an engine error for transport mapping.
func Kind(err error) ErrorKind {
	var alreadyVoted *AlreadyVotedError
	switch {
	case errors.Is(err, ErrVotingNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrNoHouses),
		errors.Is(err, ErrEmptyQuestion),
		errors.Is(err, ErrInvalidResponse):
		return KindInvalidInput
	case errors.Is(err, ErrVotingCompleted),
		errors.Is(err, ErrApartmentAlreadyVoted),
		errors.As(err, &alreadyVoted):
		return KindBusinessRule
	case errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrNotApartmentOwner):
		return KindAuthorization
	default:
		return KindInternal
	}
}
