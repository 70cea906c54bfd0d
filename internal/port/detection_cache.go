package port

import (
	"context"
	"time"
)

// DetectionCache stores validated model responses keyed by a content hash.
// Get returns found=false on a miss.
type DetectionCache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
