package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nodefleet/multistream/core/services/config"
	"github.com/nodefleet/multistream/core/services/upstream"
)

func TestUpstreamOptions_Validate(t *testing.T) {
	valid := config.UpstreamOptions{ID: "u1", Role: upstream.RolePrimary, Timeout: time.Second}
	assert.NoError(t, valid.Validate())

	t.Run("empty id", func(t *testing.T) {
		o := valid
		o.ID = ""
		assert.Error(t, o.Validate())
	})

	t.Run("unknown role", func(t *testing.T) {
		o := valid
		o.Role = upstream.Role(99)
		assert.Error(t, o.Validate())
	})

	t.Run("negative priority", func(t *testing.T) {
		o := valid
		o.Priority = -1
		assert.Error(t, o.Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		o := valid
		o.Retries = -1
		assert.Error(t, o.Validate())
	})
}

func TestStaticChainConfig_Validate(t *testing.T) {
	cfg := config.StaticChainConfig{
		UpstreamSlice: []config.UpstreamOptions{
			{ID: "u1", Role: upstream.RolePrimary},
			{ID: "u2", Role: upstream.RoleFallback},
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.UpstreamSlice = append(cfg.UpstreamSlice, config.UpstreamOptions{ID: "", Role: upstream.RolePrimary})
	assert.Error(t, cfg.Validate())
}
