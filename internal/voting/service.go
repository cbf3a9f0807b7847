package voting

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/internal/ownership"
	"github.com/homecouncil/voting-service/pkg/queue"
)

// DecisionNone is the canonical decision text when no option won: either no
// votes were cast, or the top options tied exactly. It must stay
// distinguishable from any real response option.
const DecisionNone = "no decision reached"

// Notifier hands notification jobs to the notification service. *queue.Queue
// implements it; nil disables notifications (tests, degraded mode).
type Notifier interface {
	EnqueueVotingCreated(ctx context.Context, payload queue.VotingCreatedPayload) error
	EnqueueVotingDecided(ctx context.Context, payload queue.VotingDecidedPayload) error
}

// Service is the voting engine: it creates votings from ownership snapshots,
// records vote submissions per channel, and computes tallies and decisions.
type Service struct {
	store    Store
	owners   ownership.Provider
	notifier Notifier
	cache    *TallyCache
	logger   *zap.Logger

	webPipeline      *Pipeline
	telegramPipeline *Pipeline
}

// NewService creates a voting service.
func NewService(store Store, owners ownership.Provider, notifier Notifier, cache *TallyCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:            store,
		owners:           owners,
		notifier:         notifier,
		cache:            cache,
		logger:           logger,
		webPipeline:      NewWebPipeline(store),
		telegramPipeline: NewTelegramPipeline(store),
	}
}

// CreateVoting validates the inputs, snapshots ownership for the target
// houses and persists the voting with one owner record per (user, apartment)
// pair. A snapshot with zero owners still creates a (degenerate) voting; a
// snapshot fetch failure fails the creation.
func (s *Service) CreateVoting(ctx context.Context, question string, options []string, houseIDs []uuid.UUID, durationHours int) (*models.Voting, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	cleaned, err := validateOptions(options)
	if err != nil {
		return nil, err
	}
	if len(houseIDs) == 0 {
		return nil, ErrNoHouses
	}

	snapshot, err := s.owners.OwnersForHouses(ctx, houseIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	v := &models.Voting{
		Question:        strings.TrimSpace(question),
		ResponseOptions: cleaned,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(durationHours) * time.Hour),
	}
	for _, owner := range snapshot {
		v.OwnerRecords = append(v.OwnerRecords, models.OwnerVoteRecord{
			UserID:        owner.UserID,
			ApartmentID:   owner.ApartmentID,
			HouseID:       owner.HouseID,
			ApartmentArea: owner.ApartmentArea,
			Share:         owner.Share,
			VoteWeight:    owner.Share * owner.ApartmentArea,
		})
	}

	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info("voting created",
		zap.String("voting_id", v.ID.String()),
		zap.Int("owner_records", len(v.OwnerRecords)),
		zap.Time("end_time", v.EndTime),
	)

	if s.notifier != nil {
		if err := s.notifier.EnqueueVotingCreated(ctx, queue.VotingCreatedPayload{
			VotingID: v.ID,
			Question: v.Question,
			EndTime:  v.EndTime,
		}); err != nil {
			// The voting exists either way; notification is best-effort.
			s.logger.Warn("enqueue voting-created notification failed", zap.Error(err))
		}
	}
	return v, nil
}

// SubmitWebVote records a response for exactly one apartment the user owns.
func (s *Service) SubmitWebVote(ctx context.Context, votingID, userID, apartmentID uuid.UUID, response string) error {
	sub := &Submission{VotingID: votingID, UserID: userID, Response: response, ApartmentID: apartmentID}
	if err := s.webPipeline.Run(ctx, sub); err != nil {
		return err
	}

	var recordID uuid.UUID
	for _, rec := range sub.Records {
		if rec.ApartmentID == apartmentID {
			recordID = rec.ID
			break
		}
	}
	changed, err := s.store.SetResponse(ctx, recordID, response)
	if err != nil {
		return err
	}
	if !changed {
		// Lost a race against another submission for the same record.
		return ErrApartmentAlreadyVoted
	}

	s.cache.Invalidate(ctx, votingID)
	s.logger.Info("web vote recorded",
		zap.String("voting_id", votingID.String()),
		zap.String("user_id", userID.String()),
		zap.String("apartment_id", apartmentID.String()),
	)
	return nil
}

// SubmitTelegramVote records a response on every un-voted record the user
// holds in the voting ("on behalf of all apartments at once").
func (s *Service) SubmitTelegramVote(ctx context.Context, votingID, userID uuid.UUID, response string) error {
	sub := &Submission{VotingID: votingID, UserID: userID, Response: response}
	if err := s.telegramPipeline.Run(ctx, sub); err != nil {
		return err
	}

	n, err := s.store.SetResponseForUser(ctx, votingID, userID, response)
	if err != nil {
		return err
	}
	if n == 0 {
		// Lost a race against a concurrent submission; report the response
		// that won.
		return &AlreadyVotedError{Previous: s.previousResponse(ctx, votingID, userID)}
	}

	s.cache.Invalidate(ctx, votingID)
	s.logger.Info("telegram vote recorded",
		zap.String("voting_id", votingID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("records", n),
	)
	return nil
}

func (s *Service) previousResponse(ctx context.Context, votingID, userID uuid.UUID) string {
	v, err := s.store.GetByID(ctx, votingID)
	if err != nil {
		return ""
	}
	for _, rec := range v.RecordsFor(userID) {
		if rec.HasVoted() {
			return rec.Response
		}
	}
	return ""
}

// GetVoting returns a voting with its tally projection, cache-aside.
func (s *Service) GetVoting(ctx context.Context, id uuid.UUID) (*models.Voting, *models.Tally, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if tally, ok := s.cache.Get(ctx, id); ok {
		return v, tally, nil
	}
	tally := ComputeTally(v)
	s.cache.Set(ctx, id, tally)
	return v, tally, nil
}

// ListAll returns every voting.
func (s *Service) ListAll(ctx context.Context) ([]models.Voting, error) {
	return s.store.ListAll(ctx)
}

// ListByParticipant returns votings the user has or hasn't voted in.
func (s *Service) ListByParticipant(ctx context.Context, userID uuid.UUID, voted bool) ([]models.Voting, error) {
	return s.store.ListByParticipant(ctx, userID, voted)
}

// ComputeTally sums vote weights per response option over the records that
// carry a response. It is a pure read-side computation: the same record set
// always produces the same tally.
func ComputeTally(v *models.Voting) *models.Tally {
	tally := &models.Tally{}
	weights := make(map[string]float64, len(v.ResponseOptions))
	for _, rec := range v.OwnerRecords {
		if !rec.HasVoted() {
			continue
		}
		weights[rec.Response] += rec.VoteWeight
		tally.TotalWeight += rec.VoteWeight
	}
	for _, opt := range v.ResponseOptions {
		ot := models.OptionTally{Option: opt, Weight: weights[opt]}
		if tally.TotalWeight > 0 {
			ot.Fraction = ot.Weight / tally.TotalWeight
		}
		tally.Options = append(tally.Options, ot)
	}
	return tally
}

// Decide computes the decision for a completed voting: the option with
// strictly greatest total weight wins. Zero votes or an exact tie at the top
// yield DecisionNone.
func Decide(v *models.Voting) string {
	tally := ComputeTally(v)
	if tally.TotalWeight == 0 {
		return DecisionNone
	}
	best := tally.Options[0]
	tied := false
	for _, ot := range tally.Options[1:] {
		switch {
		case ot.Weight > best.Weight:
			best = ot
			tied = false
		case ot.Weight == best.Weight:
			tied = true
		}
	}
	if tied {
		return DecisionNone
	}
	return best.Option
}

// validateOptions trims the options and enforces: at least two, none blank,
// none purely punctuation, no case-insensitive duplicates.
func validateOptions(options []string) ([]string, error) {
	if len(options) < 2 {
		return nil, ErrInvalidOptions
	}
	cleaned := make([]string, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" || punctuationOnly(opt) {
			return nil, ErrInvalidOptions
		}
		key := strings.ToLower(opt)
		if _, dup := seen[key]; dup {
			return nil, ErrInvalidOptions
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, opt)
	}
	return cleaned, nil
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}
