package voting

import (
	"context"

	"github.com/google/uuid"

	"github.com/homecouncil/voting-service/internal/models"
)

// Submission is the shared context a vote submission is validated against.
// Rules read it and may populate it (loaded voting, the user's records) for
// the rules that follow.
type Submission struct {
	VotingID    uuid.UUID
	UserID      uuid.UUID
	Response    string
	ApartmentID uuid.UUID // web channel only

	Voting  *models.Voting
	Records []models.OwnerVoteRecord
}

// Rule is one admission check. A nil return lets the pipeline continue; an
// error short-circuits the remaining rules and is reported to the caller.
type Rule func(ctx context.Context, s *Submission) error

// Pipeline runs an ordered rule chain against a submission. Order matters:
// votingExists loads the voting before any rule that reads it, and
// isParticipant loads the user's records before the channel-specific rules.
type Pipeline struct {
	rules []Rule
}

// Run executes the rules in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context, s *Submission) error {
	for _, rule := range p.rules {
		if err := rule(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// NewWebPipeline builds the rule chain for web submissions, which address a
// single named apartment.
func NewWebPipeline(store Store) *Pipeline {
	return &Pipeline{rules: []Rule{
		votingExists(store),
		notCompleted,
		responseOption,
		isParticipant,
		specificApartment,
	}}
}

// NewTelegramPipeline builds the rule chain for telegram submissions, which
// vote on behalf of all of the user's apartments at once.
func NewTelegramPipeline(store Store) *Pipeline {
	return &Pipeline{rules: []Rule{
		votingExists(store),
		notCompleted,
		responseOption,
		isParticipant,
		notAlreadyVoted,
	}}
}

// votingExists loads the voting into the submission context.
func votingExists(store Store) Rule {
	return func(ctx context.Context, s *Submission) error {
		v, err := store.GetByID(ctx, s.VotingID)
		if err != nil {
			return err
		}
		s.Voting = v
		return nil
	}
}

// notCompleted rejects submissions to a closed voting.
func notCompleted(_ context.Context, s *Submission) error {
	if s.Voting.IsCompleted {
		return ErrVotingCompleted
	}
	return nil
}

// responseOption rejects responses outside the voting's option list.
// Exact string match.
func responseOption(_ context.Context, s *Submission) error {
	for _, opt := range s.Voting.ResponseOptions {
		if opt == s.Response {
			return nil
		}
	}
	return ErrInvalidResponse
}

// isParticipant loads the user's owner records into the submission context
// and rejects users with none.
func isParticipant(_ context.Context, s *Submission) error {
	s.Records = s.Voting.RecordsFor(s.UserID)
	if len(s.Records) == 0 {
		return ErrNotParticipant
	}
	return nil
}

// specificApartment (web suffix) requires the user to own the addressed
// apartment in this voting, and that apartment's record to be un-voted.
func specificApartment(_ context.Context, s *Submission) error {
	for _, rec := range s.Records {
		if rec.ApartmentID != s.ApartmentID {
			continue
		}
		if rec.HasVoted() {
			return ErrApartmentAlreadyVoted
		}
		return nil
	}
	return ErrNotApartmentOwner
}

// notAlreadyVoted (telegram suffix) rejects the submission if any of the
// user's records already carries a response, echoing the previous choice.
func notAlreadyVoted(_ context.Context, s *Submission) error {
	for _, rec := range s.Records {
		if rec.HasVoted() {
			return &AlreadyVotedError{Previous: rec.Response}
		}
	}
	return nil
}
