package models

import (
	"time"

	"github.com/google/uuid"
)

// Voting is a time-boxed single-question ballot scoped to a set of houses.
// It owns its OwnerRecords; they are created with it and cascade-deleted with it.
type Voting struct {
	ID              uuid.UUID         `json:"id"`
	Question        string            `json:"question"`
	ResponseOptions []string          `json:"response_options"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	IsCompleted     bool              `json:"is_completed"`
	Decision        *string           `json:"decision,omitempty"`
	OwnerRecords    []OwnerVoteRecord `json:"owner_records,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OwnerVoteRecord is one apartment-ownership stake entitled to a weighted vote
// in a Voting. VoteWeight is share × apartment area, fixed at creation and
// never recomputed even if ownership or area changes upstream.
type OwnerVoteRecord struct {
	ID            uuid.UUID `json:"id"`
	VotingID      uuid.UUID `json:"voting_id"`
	UserID        uuid.UUID `json:"user_id"`
	ApartmentID   uuid.UUID `json:"apartment_id"`
	HouseID       uuid.UUID `json:"house_id"`
	ApartmentArea float64   `json:"apartment_area"`
	Share         float64   `json:"share"`
	VoteWeight    float64   `json:"vote_weight"`
	Response      string    `json:"response"` // empty means "not yet voted"
	CreatedAt     time.Time `json:"created_at"`
}

// HasVoted reports whether the record carries a response.
func (r OwnerVoteRecord) HasVoted() bool {
	return r.Response != ""
}

// RecordsFor returns all records held by the given user.
func (v *Voting) RecordsFor(userID uuid.UUID) []OwnerVoteRecord {
	var out []OwnerVoteRecord
	for _, r := range v.OwnerRecords {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// ApartmentOwner is one row of the ownership snapshot returned by the
// apartments service: a (user, apartment) pair with its share and unit area.
type ApartmentOwner struct {
	UserID        uuid.UUID `json:"user_id"`
	ApartmentID   uuid.UUID `json:"apartment_id"`
	HouseID       uuid.UUID `json:"house_id"`
	ApartmentArea float64   `json:"apartment_area"`
	Share         float64   `json:"share"`
}

// OptionTally is the aggregated weight cast for one response option.
type OptionTally struct {
	Option   string  `json:"option"`
	Weight   float64 `json:"weight"`
	Fraction float64 `json:"fraction"`
}

// Tally is the read-side projection of a Voting's weighted results, ordered
// as the voting's response options.
type Tally struct {
	TotalWeight float64       `json:"total_weight"`
	Options     []OptionTally `json:"options"`
}
