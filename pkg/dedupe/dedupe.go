package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecochain/platform/pkg/common/logger"
)

// Index remembers which upload produced a given content hash per wallet, so
// an identical document re-submitted inside the TTL window maps back to its
// original session instead of double-minting. Redis failures degrade to a
// miss; deduplication is advisory, not a correctness gate.
type Index struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIndex(client *redis.Client, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Index{client: client, ttl: ttl}
}

func entryKey(wallet, contentHash string) string {
	return fmt.Sprintf("dedupe:%s:%s", wallet, contentHash)
}

// Lookup returns the upload id recorded for this wallet and content hash.
func (i *Index) Lookup(ctx context.Context, wallet, contentHash string) (string, bool) {
	if i == nil || i.client == nil {
		return "", false
	}

	val, err := i.client.Get(ctx, entryKey(wallet, contentHash)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		logger.Log.WithError(err).Warn("dedupe lookup failed, treating as miss")
		return "", false
	}
	return val, true
}

// Remember records the mapping once a session completes.
func (i *Index) Remember(ctx context.Context, wallet, contentHash, uploadID string) {
	if i == nil || i.client == nil {
		return
	}

	if err := i.client.Set(ctx, entryKey(wallet, contentHash), uploadID, i.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("upload_id", uploadID).Warn("failed to record dedupe entry")
	}
}

// Forget drops the mapping when its session is deleted, so re-uploading the
// same content creates a fresh session.
func (i *Index) Forget(ctx context.Context, wallet, contentHash string) {
	if i == nil || i.client == nil {
		return
	}

	if err := i.client.Del(ctx, entryKey(wallet, contentHash)).Err(); err != nil {
		logger.Log.WithError(err).Warn("failed to drop dedupe entry")
	}
}
