package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/epoch"
	"github.com/signalsfoundry/trajectory-segmenter/internal/ephem"
	"github.com/signalsfoundry/trajectory-segmenter/internal/query"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// ErrInvalidRequest is returned for requests without a usable query.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps solver and engine errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, solver.ErrCancelled), errors.Is(err, context.Canceled):
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, solver.ErrUnsolvable):
		return status.Error(codes.Unimplemented, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, query.ErrInvalidDocument),
		errors.Is(err, core.ErrModel),
		errors.Is(err, core.ErrUnsupportedOperation),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, solver.ErrInvalidConfig),
		errors.Is(err, ephem.ErrUnknownBody),
		errors.Is(err, ephem.ErrDuplicateBody),
		errors.Is(err, ephem.ErrPropagation),
		errors.Is(err, ephem.ErrUnsupportedFrame),
		errors.Is(err, ephem.ErrUnsupportedQuantity),
		errors.Is(err, window.ErrInvalidInterval),
		errors.Is(err, window.ErrUnresolvedBound),
		errors.Is(err, epoch.ErrUnresolvedTime):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ephem.ErrResultOverflow),
		errors.Is(err, window.ErrCapacityExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
