package voting_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/internal/voting"
	"github.com/homecouncil/voting-service/internal/voting/memory"
)

// seedVoting persists a voting with one record per owner directly through the
// store, bypassing the engine, so rule tests control the exact state.
func seedVoting(t *testing.T, store *memory.Store, completed bool, responses map[uuid.UUID]string) *models.Voting {
	t.Helper()
	v := &models.Voting{
		Question:        "Repaint the stairwell?",
		ResponseOptions: []string{"Yes", "No"},
	}
	for userID, resp := range responses {
		v.OwnerRecords = append(v.OwnerRecords, models.OwnerVoteRecord{
			UserID:      userID,
			ApartmentID: uuid.New(),
			HouseID:     houseID,
			Share:       1,
			VoteWeight:  10,
			Response:    resp,
		})
	}
	require.NoError(t, store.Create(context.Background(), v))
	if completed {
		_, err := store.MarkCompleted(context.Background(), v.ID)
		require.NoError(t, err)
	}
	stored, err := store.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	return stored
}

func TestPipelineOrdering(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user := uuid.New()

	t.Run("existence before everything", func(t *testing.T) {
		// Even a completely malformed submission reports NotFound first.
		sub := &voting.Submission{VotingID: uuid.New(), UserID: user, Response: "Bogus"}
		err := voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrVotingNotFound)
	})

	t.Run("completion before response validity", func(t *testing.T) {
		v := seedVoting(t, store, true, map[uuid.UUID]string{user: ""})
		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "Bogus"}
		err := voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrVotingCompleted)
	})

	t.Run("response validity before identity", func(t *testing.T) {
		v := seedVoting(t, store, false, map[uuid.UUID]string{user: ""})
		sub := &voting.Submission{VotingID: v.ID, UserID: uuid.New(), Response: "Bogus"}
		err := voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrInvalidResponse)
	})

	t.Run("participation before apartment check", func(t *testing.T) {
		v := seedVoting(t, store, false, map[uuid.UUID]string{user: ""})
		sub := &voting.Submission{VotingID: v.ID, UserID: uuid.New(), Response: "Yes", ApartmentID: uuid.New()}
		err := voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrNotParticipant)
	})
}

func TestWebPipelineSuffix(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user := uuid.New()
	v := seedVoting(t, store, false, map[uuid.UUID]string{user: ""})
	rec := v.OwnerRecords[0]

	t.Run("unowned apartment", func(t *testing.T) {
		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "Yes", ApartmentID: uuid.New()}
		err := voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrNotApartmentOwner)
	})

	t.Run("owned and un-voted passes", func(t *testing.T) {
		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "Yes", ApartmentID: rec.ApartmentID}
		require.NoError(t, voting.NewWebPipeline(store).Run(ctx, sub))
		require.NotNil(t, sub.Voting, "pipeline populates the loaded voting")
		require.Len(t, sub.Records, 1, "pipeline populates the user's records")
	})

	t.Run("already voted apartment", func(t *testing.T) {
		changed, err := store.SetResponse(ctx, rec.ID, "Yes")
		require.NoError(t, err)
		require.True(t, changed)

		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "No", ApartmentID: rec.ApartmentID}
		err = voting.NewWebPipeline(store).Run(ctx, sub)
		require.ErrorIs(t, err, voting.ErrApartmentAlreadyVoted)
	})
}

func TestTelegramPipelineSuffix(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user := uuid.New()
	v := seedVoting(t, store, false, map[uuid.UUID]string{user: ""})

	t.Run("un-voted user passes", func(t *testing.T) {
		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "No"}
		require.NoError(t, voting.NewTelegramPipeline(store).Run(ctx, sub))
	})

	t.Run("any prior response rejects with payload", func(t *testing.T) {
		changed, err := store.SetResponse(ctx, v.OwnerRecords[0].ID, "Yes")
		require.NoError(t, err)
		require.True(t, changed)

		sub := &voting.Submission{VotingID: v.ID, UserID: user, Response: "No"}
		err = voting.NewTelegramPipeline(store).Run(ctx, sub)
		var alreadyVoted *voting.AlreadyVotedError
		require.ErrorAs(t, err, &alreadyVoted)
		require.Equal(t, "Yes", alreadyVoted.Previous)
	})
}
