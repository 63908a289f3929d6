package nativerpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nodefleet/multistream/core/services/config"
	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

func TestConfigFromUpstreamOptions_CarriesSharedFields(t *testing.T) {
	chain := models.ChainRef{ChainCode: "ETH", ID: 1}
	opts := config.UpstreamOptions{
		ID:       "u1",
		Role:     upstream.RoleFallback,
		Priority: 3,
		Labels:   map[string]string{"region": "us"},
	}

	cfg := ConfigFromUpstreamOptions(opts, chain, "http://localhost:8545", 5*time.Second)

	assert.Equal(t, "u1", cfg.ID)
	assert.Equal(t, chain, cfg.Chain)
	assert.Equal(t, "http://localhost:8545", cfg.Endpoint)
	assert.Equal(t, upstream.RoleFallback, cfg.Role)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.Options.Priority)
	assert.Equal(t, "us", cfg.Options.Labels["region"])
}
