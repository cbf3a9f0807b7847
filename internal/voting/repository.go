package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homecouncil/voting-service/internal/models"
)

// Repository handles voting persistence on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a voting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a voting and all its owner records in one transaction.
func (r *Repository) Create(ctx context.Context, v *models.Voting) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertVoting = `INSERT INTO votings (id, question, response_options, start_time, end_time, is_completed)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, FALSE)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertVoting, v.Question, v.ResponseOptions, v.StartTime, v.EndTime).
		Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("insert voting: %w", err)
	}

	const insertRecord = `INSERT INTO owner_vote_records (id, voting_id, user_id, apartment_id, house_id, apartment_area, share, vote_weight, response)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, '')
		RETURNING id, created_at`
	for i := range v.OwnerRecords {
		rec := &v.OwnerRecords[i]
		rec.VotingID = v.ID
		if err := tx.QueryRow(ctx, insertRecord,
			v.ID, rec.UserID, rec.ApartmentID, rec.HouseID, rec.ApartmentArea, rec.Share, rec.VoteWeight).
			Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return fmt.Errorf("insert owner record: %w", err)
		}
	}
	return tx.Commit(ctx)
}

const votingColumns = `id, question, response_options, start_time, end_time, is_completed, decision, created_at`

// GetByID returns a voting with its owner records.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Voting, error) {
	const q = `SELECT ` + votingColumns + ` FROM votings WHERE id = $1`
	var v models.Voting
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&v.ID, &v.Question, &v.ResponseOptions, &v.StartTime, &v.EndTime, &v.IsCompleted, &v.Decision, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVotingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachRecords(ctx, []*models.Voting{&v}); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListAll returns every voting with records, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]models.Voting, error) {
	const q = `SELECT ` + votingColumns + ` FROM votings ORDER BY created_at DESC`
	return r.list(ctx, q)
}

// ListByParticipant returns votings the user participates in, filtered on
// whether any of the user's records carries a response.
func (r *Repository) ListByParticipant(ctx context.Context, userID uuid.UUID, voted bool) ([]models.Voting, error) {
	const q = `SELECT ` + votingColumns + ` FROM votings v
		WHERE EXISTS (SELECT 1 FROM owner_vote_records rec WHERE rec.voting_id = v.id AND rec.user_id = $1)
		  AND $2 = EXISTS (SELECT 1 FROM owner_vote_records rec WHERE rec.voting_id = v.id AND rec.user_id = $1 AND rec.response <> '')
		ORDER BY v.created_at DESC`
	return r.list(ctx, q, userID, voted)
}

// ListCompletedUndecided returns completed votings awaiting a decision.
func (r *Repository) ListCompletedUndecided(ctx context.Context) ([]models.Voting, error) {
	const q = `SELECT ` + votingColumns + ` FROM votings
		WHERE is_completed = TRUE AND decision IS NULL
		ORDER BY end_time`
	return r.list(ctx, q)
}

// ListExpiredUncompleted returns open votings whose end time has passed.
func (r *Repository) ListExpiredUncompleted(ctx context.Context, now time.Time) ([]models.Voting, error) {
	const q = `SELECT ` + votingColumns + ` FROM votings
		WHERE is_completed = FALSE AND end_time < $1
		ORDER BY end_time`
	return r.list(ctx, q, now)
}

// SetResponse records a response on one record, only if it is still empty.
func (r *Repository) SetResponse(ctx context.Context, recordID uuid.UUID, response string) (bool, error) {
	const q = `UPDATE owner_vote_records SET response = $1 WHERE id = $2 AND response = ''`
	tag, err := r.pool.Exec(ctx, q, response, recordID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetResponseForUser records a response on every empty record the user holds.
func (r *Repository) SetResponseForUser(ctx context.Context, votingID, userID uuid.UUID, response string) (int64, error) {
	const q = `UPDATE owner_vote_records SET response = $1
		WHERE voting_id = $2 AND user_id = $3 AND response = ''`
	tag, err := r.pool.Exec(ctx, q, response, votingID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkCompleted closes a voting, only if it is still open.
func (r *Repository) MarkCompleted(ctx context.Context, votingID uuid.UUID) (bool, error) {
	const q = `UPDATE votings SET is_completed = TRUE WHERE id = $1 AND is_completed = FALSE`
	tag, err := r.pool.Exec(ctx, q, votingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetDecision records a decision on a completed voting, only if none is set yet.
func (r *Repository) SetDecision(ctx context.Context, votingID uuid.UUID, decision string) (bool, error) {
	const q = `UPDATE votings SET decision = $1 WHERE id = $2 AND is_completed = TRUE AND decision IS NULL`
	tag, err := r.pool.Exec(ctx, q, decision, votingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]models.Voting, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votings []models.Voting
	for rows.Next() {
		var v models.Voting
		if err := rows.Scan(&v.ID, &v.Question, &v.ResponseOptions, &v.StartTime, &v.EndTime, &v.IsCompleted, &v.Decision, &v.CreatedAt); err != nil {
			return nil, err
		}
		votings = append(votings, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*models.Voting, len(votings))
	for i := range votings {
		refs[i] = &votings[i]
	}
	if err := r.attachRecords(ctx, refs); err != nil {
		return nil, err
	}
	return votings, nil
}

func (r *Repository) attachRecords(ctx context.Context, votings []*models.Voting) error {
	if len(votings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(votings))
	byID := make(map[uuid.UUID]*models.Voting, len(votings))
	for _, v := range votings {
		ids = append(ids, v.ID)
		byID[v.ID] = v
	}

	const q = `SELECT id, voting_id, user_id, apartment_id, house_id, apartment_area, share, vote_weight, response, created_at
		FROM owner_vote_records WHERE voting_id = ANY($1) ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.OwnerVoteRecord
		if err := rows.Scan(&rec.ID, &rec.VotingID, &rec.UserID, &rec.ApartmentID, &rec.HouseID,
			&rec.ApartmentArea, &rec.Share, &rec.VoteWeight, &rec.Response, &rec.CreatedAt); err != nil {
			return err
		}
		if v, ok := byID[rec.VotingID]; ok {
			v.OwnerRecords = append(v.OwnerRecords, rec)
		}
	}
	return rows.Err()
}
