package multistream_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodefleet/multistream/core/services/multistream"
)

const (
	testEventuallyTimeout = time.Second
	testEventuallyTick    = 5 * time.Millisecond
)

func newTestMultistream(t *testing.T) *multistream.Multistream {
	t.Helper()
	m := multistream.New(testChain(), nil, nil)
	require.NoError(t, m.Start())
	return m
}
