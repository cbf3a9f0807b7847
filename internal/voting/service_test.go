package voting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/internal/voting"
	"github.com/homecouncil/voting-service/internal/voting/memory"
	"github.com/homecouncil/voting-service/pkg/queue"
)

type fakeProvider struct {
	owners []models.ApartmentOwner
	err    error
}

func (p *fakeProvider) OwnersForHouses(_ context.Context, _ []uuid.UUID) ([]models.ApartmentOwner, error) {
	return p.owners, p.err
}

type fakeNotifier struct {
	created []queue.VotingCreatedPayload
	decided []queue.VotingDecidedPayload
}

func (n *fakeNotifier) EnqueueVotingCreated(_ context.Context, p queue.VotingCreatedPayload) error {
	n.created = append(n.created, p)
	return nil
}

func (n *fakeNotifier) EnqueueVotingDecided(_ context.Context, p queue.VotingDecidedPayload) error {
	n.decided = append(n.decided, p)
	return nil
}

// owner1 holds two apartments; owner2 and owner3 one each. Weights follow
// share × area.
var (
	houseID = uuid.New()
	owner1  = uuid.New()
	owner2  = uuid.New()
	owner3  = uuid.New()
	apt1    = uuid.New()
	apt2    = uuid.New()
	apt3    = uuid.New()
	apt4    = uuid.New()
)

func threeOwnerSnapshot() []models.ApartmentOwner {
	return []models.ApartmentOwner{
		{UserID: owner1, ApartmentID: apt1, HouseID: houseID, ApartmentArea: 20, Share: 0.5},  // weight 10
		{UserID: owner2, ApartmentID: apt2, HouseID: houseID, ApartmentArea: 20, Share: 1.0},  // weight 20
		{UserID: owner3, ApartmentID: apt3, HouseID: houseID, ApartmentArea: 10, Share: 0.5},  // weight 5
	}
}

func newService(t *testing.T, owners []models.ApartmentOwner) (*voting.Service, *memory.Store, *fakeNotifier) {
	t.Helper()
	store := memory.NewStore()
	notifier := &fakeNotifier{}
	svc := voting.NewService(store, &fakeProvider{owners: owners}, notifier, nil, nil)
	return svc, store, notifier
}

func createVoting(t *testing.T, svc *voting.Service, options []string) *models.Voting {
	t.Helper()
	v, err := svc.CreateVoting(context.Background(), "Install new intercom?", options, []uuid.UUID{houseID}, 72)
	require.NoError(t, err)
	return v
}

func TestCreateVotingOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		wantErr bool
	}{
		{"two plain options", []string{"Yes", "No"}, false},
		{"options with surrounding spaces", []string{" Yes ", "No"}, false},
		{"single option", []string{"Yes"}, true},
		{"empty list", nil, true},
		{"blank option", []string{"Yes", "   "}, true},
		{"punctuation only", []string{"Yes", "?!."}, true},
		{"case-insensitive duplicate", []string{"Yes", "yes"}, true},
		{"duplicate after trimming", []string{"Yes", " Yes "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, threeOwnerSnapshot())
			v, err := svc.CreateVoting(context.Background(), "Q?", tt.options, []uuid.UUID{houseID}, 24)
			if tt.wantErr {
				require.ErrorIs(t, err, voting.ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"Yes", "No"}, v.ResponseOptions, "options are stored trimmed")
		})
	}
}

func TestCreateVotingInputValidation(t *testing.T) {
	svc, _, _ := newService(t, threeOwnerSnapshot())

	_, err := svc.CreateVoting(context.Background(), "  ", []string{"Yes", "No"}, []uuid.UUID{houseID}, 24)
	require.ErrorIs(t, err, voting.ErrEmptyQuestion)

	_, err = svc.CreateVoting(context.Background(), "Q?", []string{"Yes", "No"}, nil, 24)
	require.ErrorIs(t, err, voting.ErrNoHouses)
}

func TestCreateVotingSnapshotFailure(t *testing.T) {
	store := memory.NewStore()
	svc := voting.NewService(store, &fakeProvider{err: errors.New("apartments service down")}, nil, nil, nil)

	_, err := svc.CreateVoting(context.Background(), "Q?", []string{"Yes", "No"}, []uuid.UUID{houseID}, 24)
	require.Error(t, err)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "a failed creation must not persist anything")
}

func TestCreateVotingEmptySnapshot(t *testing.T) {
	svc, _, _ := newService(t, nil)

	v := createVoting(t, svc, []string{"Yes", "No"})
	assert.Empty(t, v.OwnerRecords, "zero owners is a valid degenerate voting")
	assert.True(t, v.EndTime.After(v.StartTime))
}

func TestCreateVotingWeights(t *testing.T) {
	svc, store, notifier := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})

	require.Len(t, v.OwnerRecords, 3)
	var sum float64
	for _, rec := range v.OwnerRecords {
		assert.InDelta(t, rec.Share*rec.ApartmentArea, rec.VoteWeight, 1e-9)
		sum += rec.VoteWeight
	}
	assert.InDelta(t, 35, sum, 1e-9)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, v.ID, notifier.created[0].VotingID)

	// Submissions never change the weight sum.
	require.NoError(t, svc.SubmitWebVote(context.Background(), v.ID, owner1, apt1, "Yes"))
	stored, err := store.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	var after float64
	for _, rec := range stored.OwnerRecords {
		after += rec.VoteWeight
	}
	assert.InDelta(t, sum, after, 1e-9)
}

func TestSubmitWebVote(t *testing.T) {
	svc, store, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes"))

	stored, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	for _, rec := range stored.OwnerRecords {
		if rec.ApartmentID == apt1 {
			assert.Equal(t, "Yes", rec.Response)
		} else {
			assert.Empty(t, rec.Response, "only the addressed apartment's record changes")
		}
	}
}

func TestSubmitWebVoteFailures(t *testing.T) {
	svc, store, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()
	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes"))

	tests := []struct {
		name        string
		votingID    uuid.UUID
		userID      uuid.UUID
		apartmentID uuid.UUID
		response    string
		wantErr     error
	}{
		{"unknown voting", uuid.New(), owner1, apt1, "Yes", voting.ErrVotingNotFound},
		{"invalid response", v.ID, owner2, apt2, "Maybe", voting.ErrInvalidResponse},
		{"not a participant", v.ID, uuid.New(), apt1, "Yes", voting.ErrNotParticipant},
		{"not owner of apartment", v.ID, owner2, apt3, "Yes", voting.ErrNotApartmentOwner},
		{"apartment already voted", v.ID, owner1, apt1, "No", voting.ErrApartmentAlreadyVoted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SubmitWebVote(ctx, tt.votingID, tt.userID, tt.apartmentID, tt.response)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// No failure above may have mutated state.
	stored, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	for _, rec := range stored.OwnerRecords {
		if rec.ApartmentID == apt1 {
			assert.Equal(t, "Yes", rec.Response)
		} else {
			assert.Empty(t, rec.Response)
		}
	}
}

func TestSubmitWebVoteCompletedVoting(t *testing.T) {
	svc, store, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	changed, err := store.MarkCompleted(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, changed)

	err = svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes")
	require.ErrorIs(t, err, voting.ErrVotingCompleted)
}

func TestSubmitTelegramVoteAllApartments(t *testing.T) {
	// owner1 holds two apartments in the voting.
	owners := append(threeOwnerSnapshot(), models.ApartmentOwner{
		UserID: owner1, ApartmentID: apt4, HouseID: houseID, ApartmentArea: 30, Share: 1.0 / 3.0,
	})
	svc, store, _ := newService(t, owners)
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	require.NoError(t, svc.SubmitTelegramVote(ctx, v.ID, owner1, "No"))

	stored, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	for _, rec := range stored.OwnerRecords {
		if rec.UserID == owner1 {
			assert.Equal(t, "No", rec.Response, "telegram votes on behalf of all apartments")
		} else {
			assert.Empty(t, rec.Response)
		}
	}
}

func TestSubmitTelegramVoteAlreadyVoted(t *testing.T) {
	owners := append(threeOwnerSnapshot(), models.ApartmentOwner{
		UserID: owner1, ApartmentID: apt4, HouseID: houseID, ApartmentArea: 30, Share: 0.5,
	})
	svc, store, _ := newService(t, owners)
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	// A single web vote on one of the apartments is enough to block the
	// telegram channel for the whole user.
	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes"))

	err := svc.SubmitTelegramVote(ctx, v.ID, owner1, "No")
	var alreadyVoted *voting.AlreadyVotedError
	require.ErrorAs(t, err, &alreadyVoted)
	assert.Equal(t, "Yes", alreadyVoted.Previous, "error carries the previous response")

	stored, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	for _, rec := range stored.OwnerRecords {
		if rec.UserID == owner1 && rec.ApartmentID == apt4 {
			assert.Empty(t, rec.Response, "failed telegram vote must not alter records")
		}
	}
}

func TestComputeTallyScenario(t *testing.T) {
	svc, store, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes")) // weight 10
	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner2, apt2, "No"))  // weight 20
	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner3, apt3, "Yes")) // weight 5

	stored, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)

	tally := voting.ComputeTally(stored)
	assert.InDelta(t, 35, tally.TotalWeight, 1e-9)
	require.Len(t, tally.Options, 2)
	assert.Equal(t, "Yes", tally.Options[0].Option)
	assert.InDelta(t, 15, tally.Options[0].Weight, 1e-9)
	assert.InDelta(t, 15.0/35.0, tally.Options[0].Fraction, 1e-9)
	assert.Equal(t, "No", tally.Options[1].Option)
	assert.InDelta(t, 20, tally.Options[1].Weight, 1e-9)

	// Pure: recomputing with no intervening writes yields identical results.
	again := voting.ComputeTally(stored)
	assert.Equal(t, tally, again)

	assert.Equal(t, "No", voting.Decide(stored))
}

func TestComputeTallyNoVotes(t *testing.T) {
	svc, store, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})

	stored, err := store.GetByID(context.Background(), v.ID)
	require.NoError(t, err)

	tally := voting.ComputeTally(stored)
	assert.Zero(t, tally.TotalWeight)
	for _, ot := range tally.Options {
		assert.Zero(t, ot.Weight)
		assert.Zero(t, ot.Fraction)
	}
}

func TestDecide(t *testing.T) {
	mkVoting := func(options []string, weightsByOption map[string][]float64) *models.Voting {
		v := &models.Voting{ResponseOptions: options}
		for opt, weights := range weightsByOption {
			for _, w := range weights {
				v.OwnerRecords = append(v.OwnerRecords, models.OwnerVoteRecord{
					UserID: uuid.New(), VoteWeight: w, Response: opt,
				})
			}
		}
		return v
	}

	t.Run("no votes cast", func(t *testing.T) {
		v := &models.Voting{ResponseOptions: []string{"Yes", "No"}}
		assert.Equal(t, voting.DecisionNone, voting.Decide(v))
	})

	t.Run("exact tie at the top", func(t *testing.T) {
		v := mkVoting([]string{"Yes", "No"}, map[string][]float64{"Yes": {10}, "No": {10}})
		assert.Equal(t, voting.DecisionNone, voting.Decide(v))
	})

	t.Run("tie below a clear leader", func(t *testing.T) {
		v := mkVoting([]string{"A", "B", "C"}, map[string][]float64{"A": {10}, "B": {10}, "C": {25}})
		assert.Equal(t, "C", voting.Decide(v))
	})

	t.Run("strict majority by weight wins", func(t *testing.T) {
		v := mkVoting([]string{"Yes", "No"}, map[string][]float64{"Yes": {10, 5}, "No": {20}})
		assert.Equal(t, "No", voting.Decide(v))
	})
}

func TestListByParticipant(t *testing.T) {
	svc, _, _ := newService(t, threeOwnerSnapshot())
	v := createVoting(t, svc, []string{"Yes", "No"})
	ctx := context.Background()

	pending, err := svc.ListByParticipant(ctx, owner1, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, v.ID, pending[0].ID)

	voted, err := svc.ListByParticipant(ctx, owner1, true)
	require.NoError(t, err)
	assert.Empty(t, voted)

	require.NoError(t, svc.SubmitWebVote(ctx, v.ID, owner1, apt1, "Yes"))

	voted, err = svc.ListByParticipant(ctx, owner1, true)
	require.NoError(t, err)
	require.Len(t, voted, 1)

	pending, err = svc.ListByParticipant(ctx, owner1, false)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A stranger participates in nothing.
	none, err := svc.ListByParticipant(ctx, uuid.New(), false)
	require.NoError(t, err)
	assert.Empty(t, none)
}
