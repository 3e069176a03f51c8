package cache

import (
	"context"

	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
)

// UnmarshalCacheValue converts a cached value to the requested type. Values are
// either stored as pointers or as their JSON encoding.
func UnmarshalCacheValue[T any](value interface{}) (*T, bool) {
	if value == nil {
		return nil, false
	}

	if typed, ok := value.(*T); ok {
		return typed, true
	}

	if str, ok := value.(string); ok {
		var result T
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(str, &result); err == nil {
			return &result, true
		}
	}

	return nil, false
}

// StartCacheSpan starts a sentry span for a cache operation, nil when no hub is bound to ctx
func StartCacheSpan(ctx context.Context, cache, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "cache."+cache+"."+operation)
	span.Description = "cache." + cache + "." + operation
	span.SetData("cache", cache)
	span.SetData("operation", operation)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span
}

// FinishSpan safely finishes a span, handling nil spans
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}
