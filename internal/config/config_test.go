package config

import (
	"testing"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, types.ModeLocal, cfg.Deployment.Mode)
	assert.Equal(t, 1, cfg.Subscription.MaximumSuccessiveSkips)
	assert.Equal(t, 3, cfg.Subscription.MaximumTotalSkips)
	assert.Equal(t, types.ErrorHandlerTypeSwallow, cfg.Subscription.ProcessJobErrorHandler)
	assert.Equal(t, 100, cfg.Processor.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Checkout.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestConfigurationValidate(t *testing.T) {
	t.Run("rejects unknown error handler", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Subscription.ProcessJobErrorHandler = "explode"
		assert.True(t, ierr.IsValidation(cfg.Validate()))
	})

	t.Run("rejects negative skip limits", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Subscription.MaximumTotalSkips = -1
		assert.True(t, ierr.IsValidation(cfg.Validate()))
	})

	t.Run("rejects empty processor concurrency", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Processor.Concurrency = 0
		assert.True(t, ierr.IsValidation(cfg.Validate()))
	})
}

func TestPostgresDSN(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, "host=localhost port=5432 user=recurring password=recurring dbname=recurring sslmode=disable", cfg.Postgres.GetDSN())
}
