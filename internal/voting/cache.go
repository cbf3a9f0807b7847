package voting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/internal/models"
)

// tallyTTL bounds staleness between a write and the next cache fill.
const tallyTTL = 30 * time.Second

// TallyCache is a Redis cache-aside for tally projections. A nil *TallyCache
// is valid and disables caching.
type TallyCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTallyCache creates a tally cache.
func NewTallyCache(client *redis.Client, logger *zap.Logger) *TallyCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TallyCache{client: client, logger: logger}
}

func tallyKey(votingID uuid.UUID) string {
	return "voting:tally:" + votingID.String()
}

// Get returns the cached tally for a voting, if present.
func (c *TallyCache) Get(ctx context.Context, votingID uuid.UUID) (*models.Tally, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, tallyKey(votingID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("tally cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var t models.Tally
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		c.logger.Warn("tally cache decode failed", zap.Error(err))
		return nil, false
	}
	return &t, true
}

// Set stores a tally projection.
func (c *TallyCache) Set(ctx context.Context, votingID uuid.UUID, t *models.Tally) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tallyKey(votingID), raw, tallyTTL).Err(); err != nil {
		c.logger.Warn("tally cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached tally after a write to the aggregate.
func (c *TallyCache) Invalidate(ctx context.Context, votingID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, tallyKey(votingID)).Err(); err != nil {
		c.logger.Warn("tally cache invalidate failed", zap.Error(err))
	}
}
