package voting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homecouncil/voting-service/internal/models"
)

// Store persists Voting aggregates. The engine, validation pipeline and
// scheduler depend on this interface; the pgx Repository implements it.
//
// Conditional writes (SetResponse, SetResponseForUser, MarkCompleted,
// SetDecision) only touch rows still in the expected state and report whether
// anything changed, so concurrent submissions and scheduler sweeps cannot
// overwrite each other's results.
type Store interface {
	// Create persists a voting and all its owner records in one transaction.
	Create(ctx context.Context, v *models.Voting) error

	// GetByID loads a voting with its owner records. Returns ErrVotingNotFound
	// if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Voting, error)

	// ListAll returns every voting with its owner records, newest first.
	ListAll(ctx context.Context) ([]models.Voting, error)

	// ListByParticipant returns votings the user holds records in. With
	// voted=true, votings where any of the user's records carries a response;
	// with voted=false, votings where none of them does.
	ListByParticipant(ctx context.Context, userID uuid.UUID, voted bool) ([]models.Voting, error)

	// ListCompletedUndecided returns completed votings with no decision yet.
	ListCompletedUndecided(ctx context.Context) ([]models.Voting, error)

	// ListExpiredUncompleted returns open votings whose end time has passed.
	ListExpiredUncompleted(ctx context.Context, now time.Time) ([]models.Voting, error)

	// SetResponse records a response on one owner record, only if the record
	// has not voted yet. Reports whether a row changed.
	SetResponse(ctx context.Context, recordID uuid.UUID, response string) (bool, error)

	// SetResponseForUser records a response on every un-voted record the user
	// holds in the voting. Returns the number of records changed.
	SetResponseForUser(ctx context.Context, votingID, userID uuid.UUID, response string) (int64, error)

	// MarkCompleted closes a voting, only if it is still open. Reports whether
	// a row changed.
	MarkCompleted(ctx context.Context, votingID uuid.UUID) (bool, error)

	// SetDecision records a decision, only on a completed voting with none
	// set yet. Reports whether a row changed.
	SetDecision(ctx context.Context, votingID uuid.UUID, decision string) (bool, error)
}
