// Package models holds the value types shared across the core:
// chain identity, block references and finalization/bounds data.
package models

import "fmt"

// ChainRef identifies the single chain a Multistream instance is bound
// to. ChainCode is the stable string form (e.g. "ETH"); ID is the
// numeric chain id used by call-routing.
type ChainRef struct {
	ChainCode string
	ID        int64
}

func (c ChainRef) String() string {
	return c.ChainCode
}

// MultistreamID is "!all:<chainCode>", the stable identity a
// Multistream reports as its own Upstream id.
func (c ChainRef) MultistreamID() string {
	return fmt.Sprintf("!all:%s", c.ChainCode)
}
