// Package scheduler closes expired votings and computes decisions for
// completed ones on a fixed polling interval.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/internal/voting"
	"github.com/homecouncil/voting-service/pkg/queue"
)

// Scheduler runs the expire and decide sweeps. One instance per service; the
// store's conditional updates keep concurrent instances and in-flight
// submissions from clobbering each other, and re-deciding is harmless since
// the decision write is once-only.
type Scheduler struct {
	store    voting.Store
	notifier voting.Notifier
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler.
func New(store voting.Store, notifier voting.Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{store: store, notifier: notifier, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one expire pass and one decide pass. A voting expired in
// this pass is picked up by the decide pass of the same cycle.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweepExpire(ctx)
	s.sweepDecide(ctx)
}

// sweepExpire closes open votings whose end time has passed.
func (s *Scheduler) sweepExpire(ctx context.Context) {
	expired, err := s.store.ListExpiredUncompleted(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("list expired votings failed", zap.Error(err))
		return
	}
	for _, v := range expired {
		changed, err := s.store.MarkCompleted(ctx, v.ID)
		if err != nil {
			// One bad voting must not block the rest of the sweep.
			s.logger.Error("mark voting completed failed",
				zap.String("voting_id", v.ID.String()), zap.Error(err))
			continue
		}
		if changed {
			s.logger.Info("voting expired", zap.String("voting_id", v.ID.String()))
		}
	}
}

// sweepDecide computes and persists decisions for completed, undecided votings.
func (s *Scheduler) sweepDecide(ctx context.Context) {
	pending, err := s.store.ListCompletedUndecided(ctx)
	if err != nil {
		s.logger.Error("list undecided votings failed", zap.Error(err))
		return
	}
	for _, v := range pending {
		decision := voting.Decide(&v)
		changed, err := s.store.SetDecision(ctx, v.ID, decision)
		if err != nil {
			s.logger.Error("set decision failed",
				zap.String("voting_id", v.ID.String()), zap.Error(err))
			continue
		}
		if !changed {
			// Another instance decided first.
			continue
		}
		s.logger.Info("voting decided",
			zap.String("voting_id", v.ID.String()),
			zap.String("decision", decision),
		)
		if s.notifier != nil {
			if err := s.notifier.EnqueueVotingDecided(ctx, queue.VotingDecidedPayload{
				VotingID: v.ID,
				Question: v.Question,
				Decision: decision,
			}); err != nil {
				s.logger.Warn("enqueue voting-decided notification failed",
					zap.String("voting_id", v.ID.String()), zap.Error(err))
			}
		}
	}
}
