package rpcapi

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nodefleet/multistream/core/services/upstream"
)

// ToStatus maps the core's error taxonomy onto grpc codes/status, the
// only place in the core that is allowed to know about the transport's
// error representation: the wire codec itself stays out of scope, but
// the status mapping is part of the gRPC-shaped boundary contract.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, upstream.ErrNotInitialized):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, upstream.ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, upstream.ErrHeadTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, upstream.ErrHeadFault):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, upstream.ErrEmissionContention):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, upstream.ErrEmissionFatal):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, upstream.ErrUnsupported):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
