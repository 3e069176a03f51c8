package cache

import (
	"context"
	"strings"
	"time"
)

const (
	PrefixPurchasable = "purchasable"
)

// Cache is a key value store for read-mostly records
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
	Flush(ctx context.Context)
}

// GenerateKey joins a prefix and its parts into a cache key
func GenerateKey(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}
