package ontology

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// CacheKeyPrefix namespaces term entries in Redis.
const CacheKeyPrefix = "ontology:term:"

// CachedSource is a read-through Redis cache in front of another TermSource.
// Redis failures fall back to the wrapped source.
type CachedSource struct {
	next   TermSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

var _ TermSource = (*CachedSource)(nil)

// NewCachedSource wraps next. A nil client disables caching.
func NewCachedSource(next TermSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) TermSource {
	if client == nil {
		return next
	}
	return &CachedSource{next: next, redis: client, ttl: ttl, logger: logger.Named("ontology-cache")}
}

func cacheKey(id string) string { return CacheKeyPrefix + id }

// FetchTerms serves hits from Redis and fetches the rest from the wrapped source.
func (c *CachedSource) FetchTerms(ctx context.Context, ids []string) (models.TermIndex, error) {
	if len(ids) == 0 {
		return models.TermIndex{}, nil
	}

	index, missing := c.readCache(ctx, ids)
	if len(missing) == 0 {
		return index, nil
	}

	fetched, err := c.next.FetchTerms(ctx, missing)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, fetched)

	for id, term := range fetched {
		index[id] = term
	}
	return index, nil
}

func (c *CachedSource) readCache(ctx context.Context, ids []string) (models.TermIndex, []string) {
	index := make(models.TermIndex, len(ids))

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Term cache read failed", zap.Error(err))
		return index, ids
	}

	var missing []string
	for i, id := range ids {
		raw, ok := values[i].(string)
		if !ok {
			missing = append(missing, id)
			continue
		}
		var term models.TermMetadata
		if err := json.Unmarshal([]byte(raw), &term); err != nil {
			c.logger.Debug("Discarding undecodable cached term", zap.String("id", id), zap.Error(err))
			missing = append(missing, id)
			continue
		}
		index[id] = &term
	}
	return index, missing
}

func (c *CachedSource) writeCache(ctx context.Context, terms models.TermIndex) {
	if len(terms) == 0 {
		return
	}
	_, err := c.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, term := range terms {
			raw, err := json.Marshal(term)
			if err != nil {
				return err
			}
			pipe.Set(ctx, cacheKey(id), raw, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Term cache write failed", zap.Int("count", len(terms)), zap.Error(err))
	}
}
