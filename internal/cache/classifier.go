package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go-crop-inspector/internal/classifier"
	"go-crop-inspector/internal/logger"
)

const keyPrefix = "crop:classification:"

// CachingClassifier serves repeated payloads from a Store. Store failures
// are logged and fall through to the wrapped classifier.
type CachingClassifier struct {
	next  classifier.Classifier
	store Store
	ttl   time.Duration
}

func NewCachingClassifier(next classifier.Classifier, store Store, ttl time.Duration) *CachingClassifier {
	return &CachingClassifier{next: next, store: store, ttl: ttl}
}

// Key is the cache key for payload.
func Key(payload []byte) string {
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachingClassifier) Classify(ctx context.Context, payload []byte) (classifier.Classification, error) {
	key := Key(payload)

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Component("cache").WithError(err).Warn("Classification cache read failed")
	} else if ok {
		var cls classifier.Classification
		if err := json.Unmarshal(cached, &cls); err == nil {
			return cls, nil
		}
		logger.Component("cache").WithField("key", key).Warn("Discarding undecodable cache entry")
	}

	cls, err := c.next.Classify(ctx, payload)
	if err != nil {
		return cls, err
	}

	if data, err := json.Marshal(cls); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			logger.Component("cache").WithError(err).Warn("Classification cache write failed")
		}
	}
	return cls, nil
}
