package cache

import (
	"github.com/flexprice/recurring/internal/logger"
)

// Initialize initializes the cache system
func Initialize(log *logger.Logger) Cache {
	InitializeInMemoryCache()
	log.Infow("cache system initialized", "type", "inmemory")
	return GetInMemoryCache()
}
