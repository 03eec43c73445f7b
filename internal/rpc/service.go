package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/query"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

const solveIDMetadataKey = "x-solve-id"

// Service solves query documents. Every call compiles its own body registry
// and dispatcher, so calls share nothing but the base configuration.
type Service struct {
	base solver.Config
	log  logging.Logger
	opts []solver.Option
}

// NewService returns a service solving with base, overridable per query.
// opts are applied to every dispatcher, e.g. metrics or extra strategies.
func NewService(base solver.Config, log logging.Logger, opts ...solver.Option) *Service {
	return &Service{base: base, log: logging.OrNoop(log), opts: opts}
}

var _ SegmenterServer = (*Service)(nil)

func (s *Service) Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, solveID := logging.EnsureSolveID(ctx)
	log := logging.FromContext(ctx, s.log)

	res, format, err := s.solve(ctx, req, log)
	if err != nil {
		log.Warn(ctx, "solve failed", logging.Err(err))
		return nil, ToStatusError(err)
	}

	rows := res.Rows(format)
	intervals := make([]any, 0, len(rows))
	for _, r := range rows {
		intervals = append(intervals, map[string]any{
			"start":    r.Start,
			"end":      r.End,
			"duration": r.Duration,
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"solve_id":  solveID,
		"count":     float64(res.Len()),
		"measure":   res.Measure(),
		"intervals": intervals,
	})
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

func (s *Service) solve(ctx context.Context, req *structpb.Struct, log logging.Logger) (*window.Window, window.TimeFormat, error) {
	fields := req.GetFields()
	doc := fields["query"].GetStructValue()
	if doc == nil {
		return nil, "", fmt.Errorf("%w: query must be an object", ErrInvalidRequest)
	}
	format, err := window.ParseTimeFormat(fields["time_format"].GetStringValue())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	parsed, err := query.ParseMap(doc.AsMap())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	q, err := query.Compile(parsed, log)
	if err != nil {
		return nil, "", err
	}
	if q.Condition == nil {
		return nil, "", fmt.Errorf("%w: query has no constraint", ErrInvalidRequest)
	}

	opts := append([]solver.Option{
		solver.WithConfig(q.Solver.Apply(s.base)),
		solver.WithLogger(log),
	}, s.opts...)
	d, err := solver.NewDispatcher(q.Engine, opts...)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	res, err := d.Solve(ctx, q.Condition, q.Window)
	if err != nil {
		return nil, "", err
	}
	log.Info(ctx, "solve finished",
		logging.Int("bodies", q.Bodies.Len()),
		logging.Int("intervals", res.Len()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return res, format, nil
}

// SolveIDUnaryServerInterceptor ensures a solve_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with the method.
func SolveIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	base = logging.OrNoop(base)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(solveIDMetadataKey); len(vals) > 0 && vals[0] != "" {
				ctx = logging.ContextWithSolveID(ctx, vals[0])
			}
		}
		ctx, _ = logging.EnsureSolveID(ctx)

		method := ""
		if info != nil {
			method = info.FullMethod
		}
		return handler(logging.ContextWithLogger(ctx, base.With(logging.String("method", method))), req)
	}
}
