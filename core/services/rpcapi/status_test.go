package rpcapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nodefleet/multistream/core/services/rpcapi"
	"github.com/nodefleet/multistream/core/services/upstream"
)

func TestToStatus_MapsTaxonomyToGrpcCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{upstream.ErrNotInitialized, codes.FailedPrecondition},
		{upstream.ErrUpstreamUnavailable, codes.Unavailable},
		{upstream.ErrHeadTimeout, codes.DeadlineExceeded},
		{upstream.ErrHeadFault, codes.Internal},
		{upstream.ErrEmissionContention, codes.ResourceExhausted},
		{upstream.ErrEmissionFatal, codes.Internal},
		{upstream.ErrUnsupported, codes.Unimplemented},
	}

	for _, c := range cases {
		got := rpcapi.ToStatus(c.err)
		st, ok := status.FromError(got)
		assert.True(t, ok)
		assert.Equal(t, c.code, st.Code())
	}
}

func TestToStatus_Nil(t *testing.T) {
	assert.NoError(t, rpcapi.ToStatus(nil))
}

func TestToStatus_UnknownErrorMapsToUnknown(t *testing.T) {
	got := rpcapi.ToStatus(assert.AnError)
	st, ok := status.FromError(got)
	assert.True(t, ok)
	assert.Equal(t, codes.Unknown, st.Code())
}
