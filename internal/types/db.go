package types

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LockScope represents the scope of a database advisory lock
type LockScope string

const (
	// LockScopeSubscription guards the read-create-advance sequence of one subscription
	LockScopeSubscription LockScope = "subscription"
)

const DefaultLockTimeout = 30 * time.Second

// LockRequest describes an advisory lock to take inside a transaction
type LockRequest struct {
	Key string
	// Timeout nil means DefaultLockTimeout; zero or negative means fail fast
	Timeout *time.Duration
}

func (r LockRequest) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return DefaultLockTimeout
	}
	return *r.Timeout
}

// GenerateLockKey generates a deterministic lock key from a scope and parameters.
// Postgres hashtext() hashes the key internally.
func GenerateLockKey(ctx context.Context, scope LockScope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build string in format: scope:key1=value1:key2=value2:...
	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	return b.String()
}

// SubscriptionLockRequest returns the lock request for processing a single subscription
func SubscriptionLockRequest(ctx context.Context, subscriptionID string) LockRequest {
	return LockRequest{
		Key: GenerateLockKey(ctx, LockScopeSubscription, map[string]interface{}{
			"subscription_id": subscriptionID,
		}),
	}
}
