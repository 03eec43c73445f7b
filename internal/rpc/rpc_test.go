package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/internal/ephem"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/observability"
	"github.com/signalsfoundry/trajectory-segmenter/internal/query"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "model error", err: core.NewModelError(core.ErrIncompatibleUnits, "km vs deg"), code: codes.InvalidArgument},
		{name: "unsupported", err: fmt.Errorf("%w: xor", core.ErrUnsupportedOperation), code: codes.InvalidArgument},
		{name: "document", err: query.ErrInvalidDocument, code: codes.InvalidArgument},
		{name: "unknown body", err: fmt.Errorf("%w: \"PLUTO\"", ephem.ErrUnknownBody), code: codes.InvalidArgument},
		{name: "unsolvable", err: solver.ErrUnsolvable, code: codes.Unimplemented},
		{name: "cancelled", err: fmt.Errorf("%w: %w", solver.ErrCancelled, context.Canceled), code: codes.Canceled},
		{name: "deadline", err: fmt.Errorf("%w: %w", solver.ErrCancelled, context.DeadlineExceeded), code: codes.DeadlineExceeded},
		{name: "overflow", err: fmt.Errorf("%w: %w", ephem.ErrResultOverflow, window.ErrCapacityExceeded), code: codes.ResourceExhausted},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}

type testEnv struct {
	ctx     context.Context
	client  *Client
	metrics *observability.RPCCollector
	solves  *observability.SolverCollector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	reg := prometheus.NewRegistry()
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	solveMetrics, err := observability.NewSolverCollector(reg)
	if err != nil {
		t.Fatalf("NewSolverCollector: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		SolveIDUnaryServerInterceptor(logging.Noop()),
		rpcMetrics.UnaryServerInterceptor(),
	))
	RegisterSegmenterServer(server, NewService(solver.DefaultConfig(), logging.Noop(), solver.WithMetrics(solveMetrics)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cancel()
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() {
		server.GracefulStop()
		_ = conn.Close()
		cancel()
	})
	return &testEnv{ctx: ctx, client: NewClient(conn), metrics: rpcMetrics, solves: solveMetrics}
}

// flyby: b passes a along x at 1 km/s, closest at t = 500.
func flybyRequest(t *testing.T, constraint map[string]any) *structpb.Struct {
	t.Helper()
	doc := map[string]any{
		"bodies": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b", "linear": map[string]any{
				"position": []any{-500.0, 0.0, 0.0},
				"velocity": []any{1.0, 0.0, 0.0},
			}},
		},
		"window":     map[string]any{"start": 0.0, "end": 1000.0},
		"properties": map[string]any{"d": map[string]any{"quantity": "distance", "observer": "a", "target": "b"}},
		"solver":     map[string]any{"step": 50.0},
	}
	if constraint != nil {
		doc["constraint"] = constraint
	}
	req, err := structpb.NewStruct(map[string]any{"query": doc, "time_format": "et"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return req
}

func TestSolveOverLoopback(t *testing.T) {
	env := newTestEnv(t)
	ctx := metadata.AppendToOutgoingContext(env.ctx, solveIDMetadataKey, "solve-42")

	resp, err := env.client.Solve(ctx, flybyRequest(t, map[string]any{
		"property": "d", "op": "<", "value": 100.0, "unit": "km",
	}))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	fields := resp.GetFields()
	if got := fields["solve_id"].GetStringValue(); got != "solve-42" {
		t.Fatalf("solve_id = %q, want solve-42", got)
	}
	if got := fields["count"].GetNumberValue(); got != 1 {
		t.Fatalf("count = %v, want 1", got)
	}
	ivs := fields["intervals"].GetListValue().GetValues()
	if len(ivs) != 1 {
		t.Fatalf("intervals = %v", ivs)
	}
	iv := ivs[0].GetStructValue().GetFields()
	for key, want := range map[string]float64{"start": 400, "end": 600} {
		got, err := strconv.ParseFloat(iv[key].GetStringValue(), 64)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if math.Abs(got-want) > 1e-2 {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}
	if got := fields["measure"].GetNumberValue(); math.Abs(got-200) > 2e-2 {
		t.Fatalf("measure = %v, want 200", got)
	}

	if got := testutil.ToFloat64(env.metrics.RPCRequests.WithLabelValues("Segmenter", "Solve", "OK")); got != 1 {
		t.Fatalf("rpc requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.solves.SolvesTotal.WithLabelValues("event", solver.OutcomeOK)); got != 1 {
		t.Fatalf("event solves = %v, want 1", got)
	}
}

func TestSolveRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	noQuery, err := structpb.NewStruct(map[string]any{"time_format": "iso"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	badFormat := flybyRequest(t, map[string]any{"property": "d", "op": "<", "value": 100.0, "unit": "km"})
	badFormat.Fields["time_format"] = structpb.NewStringValue("julian")

	tests := []struct {
		name string
		req  *structpb.Struct
	}{
		{"no query", noQuery},
		{"no constraint", flybyRequest(t, nil)},
		{"bad time format", badFormat},
		{"unknown property", flybyRequest(t, map[string]any{"property": "x", "op": "<", "value": 1.0})},
		{"incompatible units", flybyRequest(t, map[string]any{"property": "d", "op": "<", "value": 1.0, "unit": "deg"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.Solve(env.ctx, tt.req)
			if code := status.Code(err); code != codes.InvalidArgument {
				t.Fatalf("code = %v (%v), want InvalidArgument", code, err)
			}
		})
	}
}
