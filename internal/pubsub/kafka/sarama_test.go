package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/flexprice/recurring/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestGetSaramaConfig(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		sc := GetSaramaConfig(cfg)
		assert.Equal(t, cfg.Kafka.ClientID, sc.ClientID)
		assert.True(t, sc.Producer.Return.Successes)
		assert.False(t, sc.Net.SASL.Enable)
		assert.NoError(t, sc.Validate())
	})

	t.Run("scram", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Kafka.UseSASL = true
		cfg.Kafka.SASLMechanism = string(sarama.SASLTypeSCRAMSHA512)
		cfg.Kafka.SASLUser = "svc"
		cfg.Kafka.SASLPassword = "secret"

		sc := GetSaramaConfig(cfg)
		assert.True(t, sc.Net.SASL.Enable)
		assert.True(t, sc.Net.TLS.Enable)
		assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), sc.Net.SASL.Mechanism)
		assert.NotNil(t, sc.Net.SASL.SCRAMClientGeneratorFunc)

		client := sc.Net.SASL.SCRAMClientGeneratorFunc()
		assert.NoError(t, client.Begin("svc", "secret", ""))
		assert.False(t, client.Done())
	})
}
