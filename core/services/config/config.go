// Package config specifies the configuration the core consumes but
// never loads itself — loading from file/env is the embedding
// application's job. nativerpc and grpcupstream each derive their
// driver-specific Config from UpstreamOptions via their
// ConfigFromUpstreamOptions constructor.
package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nodefleet/multistream/core/services/upstream"
	"github.com/nodefleet/multistream/core/store/models"
)

// UpstreamOptions is the per-upstream configuration consumed at
// construction time.
type UpstreamOptions struct {
	ID       string
	Timeout  time.Duration
	Retries  int
	Role     upstream.Role
	Priority int
	Labels   map[string]string
}

// Validate enforces boundary-input validation: role must be PRIMARY
// or FALLBACK, priority and retries must be non-negative.
func (o UpstreamOptions) Validate() error {
	if o.ID == "" {
		return errors.New("config: upstream id must not be empty")
	}
	if o.Role != upstream.RolePrimary && o.Role != upstream.RoleFallback {
		return errors.Errorf("config: upstream %q has unknown role %v", o.ID, o.Role)
	}
	if o.Priority < 0 {
		return errors.Errorf("config: upstream %q has negative priority %d", o.ID, o.Priority)
	}
	if o.Retries < 0 {
		return errors.Errorf("config: upstream %q has negative retries %d", o.ID, o.Retries)
	}
	return nil
}

// ChainConfig is the chain-scoped configuration a Multistream is
// constructed from.
type ChainConfig interface {
	Chain() models.ChainRef
	Upstreams() []UpstreamOptions
}

// StaticChainConfig is a simple in-memory ChainConfig, typically
// produced by the embedding application's own config loader.
type StaticChainConfig struct {
	ChainRef      models.ChainRef
	UpstreamSlice []UpstreamOptions
}

func (c StaticChainConfig) Chain() models.ChainRef       { return c.ChainRef }
func (c StaticChainConfig) Upstreams() []UpstreamOptions { return c.UpstreamSlice }

// Validate validates every upstream entry.
func (c StaticChainConfig) Validate() error {
	for _, o := range c.UpstreamSlice {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}
