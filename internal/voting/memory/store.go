// Package memory provides an in-memory voting Store used in tests and for
// running the service without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/internal/voting"
)

// Store is a mutex-guarded in-memory implementation of voting.Store. All
// reads return deep copies so callers cannot mutate stored state.
type Store struct {
	mu      sync.RWMutex
	votings map[uuid.UUID]*models.Voting
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{votings: make(map[uuid.UUID]*models.Voting)}
}

var _ voting.Store = (*Store)(nil)

// Create persists a voting and its owner records.
func (s *Store) Create(_ context.Context, v *models.Voting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.ID = uuid.New()
	v.CreatedAt = time.Now().UTC()
	for i := range v.OwnerRecords {
		v.OwnerRecords[i].ID = uuid.New()
		v.OwnerRecords[i].VotingID = v.ID
		v.OwnerRecords[i].CreatedAt = v.CreatedAt
	}
	s.votings[v.ID] = clone(v)
	return nil
}

// GetByID returns a voting with its records.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*models.Voting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votings[id]
	if !ok {
		return nil, voting.ErrVotingNotFound
	}
	return clone(v), nil
}

// ListAll returns every voting, newest first.
func (s *Store) ListAll(_ context.Context) ([]models.Voting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*models.Voting) bool { return true }), nil
}

// ListByParticipant filters votings by the user's participation and whether
// any of the user's records carries a response.
func (s *Store) ListByParticipant(_ context.Context, userID uuid.UUID, voted bool) ([]models.Voting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(v *models.Voting) bool {
		participates := false
		hasVoted := false
		for _, rec := range v.OwnerRecords {
			if rec.UserID != userID {
				continue
			}
			participates = true
			if rec.HasVoted() {
				hasVoted = true
			}
		}
		return participates && hasVoted == voted
	}), nil
}

// ListCompletedUndecided returns completed votings with no decision.
func (s *Store) ListCompletedUndecided(_ context.Context) ([]models.Voting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(v *models.Voting) bool {
		return v.IsCompleted && v.Decision == nil
	}), nil
}

// ListExpiredUncompleted returns open votings past their end time.
func (s *Store) ListExpiredUncompleted(_ context.Context, now time.Time) ([]models.Voting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(v *models.Voting) bool {
		return !v.IsCompleted && v.EndTime.Before(now)
	}), nil
}

// SetResponse records a response on one record if it is still empty.
func (s *Store) SetResponse(_ context.Context, recordID uuid.UUID, response string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.votings {
		for i := range v.OwnerRecords {
			rec := &v.OwnerRecords[i]
			if rec.ID != recordID {
				continue
			}
			if rec.HasVoted() {
				return false, nil
			}
			rec.Response = response
			return true, nil
		}
	}
	return false, nil
}

// SetResponseForUser records a response on every empty record the user holds.
func (s *Store) SetResponseForUser(_ context.Context, votingID, userID uuid.UUID, response string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votings[votingID]
	if !ok {
		return 0, nil
	}
	var n int64
	for i := range v.OwnerRecords {
		rec := &v.OwnerRecords[i]
		if rec.UserID == userID && !rec.HasVoted() {
			rec.Response = response
			n++
		}
	}
	return n, nil
}

// MarkCompleted closes a voting if it is still open.
func (s *Store) MarkCompleted(_ context.Context, votingID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votings[votingID]
	if !ok || v.IsCompleted {
		return false, nil
	}
	v.IsCompleted = true
	return true, nil
}

// SetDecision records a decision on a completed voting if none is set.
func (s *Store) SetDecision(_ context.Context, votingID uuid.UUID, decision string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votings[votingID]
	if !ok || !v.IsCompleted || v.Decision != nil {
		return false, nil
	}
	v.Decision = &decision
	return true, nil
}

func (s *Store) collect(match func(*models.Voting) bool) []models.Voting {
	var out []models.Voting
	for _, v := range s.votings {
		if match(v) {
			out = append(out, *clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func clone(v *models.Voting) *models.Voting {
	cp := *v
	cp.ResponseOptions = append([]string(nil), v.ResponseOptions...)
	cp.OwnerRecords = append([]models.OwnerVoteRecord(nil), v.OwnerRecords...)
	if v.Decision != nil {
		d := *v.Decision
		cp.Decision = &d
	}
	return &cp
}
