package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/trajectory-segmenter/solver"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/segmenter.v1.Segmenter/Solve"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		if got := testutil.ToFloat64(collector.InFlight); got != 1 {
			t.Errorf("in-flight during handler = %v, want 1", got)
		}
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Segmenter", "Solve", "OK")); got != 1 {
		t.Fatalf("segmenter_rpc_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.InFlight); got != 0 {
		t.Fatalf("in-flight after handler = %v, want 0", got)
	}
	if count := histogramSampleCount(t, reg, "segmenter_rpc_duration_seconds", map[string]string{
		"service": "Segmenter",
		"method":  "Solve",
	}); count != 1 {
		t.Fatalf("segmenter_rpc_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/segmenter.v1.Segmenter/Solve"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Segmenter", "Solve", "InvalidArgument")); got != 1 {
		t.Fatalf("segmenter_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRPCCollector(reg); err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	again, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("second NewRPCCollector: %v", err)
	}
	again.RPCRequests.WithLabelValues("svc", "m", "OK").Inc()
	if got := testutil.CollectAndCount(again.RPCRequests); got != 1 {
		t.Fatalf("series = %d, want 1", got)
	}
}

func TestSolverCollectorObserveSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSolverCollector(reg)
	if err != nil {
		t.Fatalf("NewSolverCollector: %v", err)
	}
	var _ solver.MetricsRecorder = collector

	collector.ObserveSolve("event", solver.OutcomeOK, 20*time.Millisecond, 7)
	collector.ObserveSolve("event", solver.OutcomeError, 5*time.Millisecond, 0)
	collector.ObserveSolve("none", solver.OutcomeUnsolvable, 0, 0)

	if got := testutil.ToFloat64(collector.SolvesTotal.WithLabelValues("event", "ok")); got != 1 {
		t.Fatalf("ok solves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.SolvesTotal.WithLabelValues("none", "unsolvable")); got != 1 {
		t.Fatalf("unsolvable solves = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "segmenter_solve_duration_seconds", map[string]string{"strategy": "event"}); count != 2 {
		t.Fatalf("duration samples = %d, want 2", count)
	}
	if count := histogramSampleCount(t, reg, "segmenter_solve_duration_seconds", map[string]string{"strategy": "none"}); count != 0 {
		t.Fatalf("unsolvable dispatches should not record a duration, got %d", count)
	}
	if count := histogramSampleCount(t, reg, "segmenter_result_intervals", map[string]string{"strategy": "event"}); count != 1 {
		t.Fatalf("interval samples = %d, want 1", count)
	}

	var nilCollector *SolverCollector
	nilCollector.ObserveSolve("event", solver.OutcomeOK, time.Second, 1)
}

func TestMetricsHandlerExposesSolverMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rpc, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	sc, err := NewSolverCollector(reg)
	if err != nil {
		t.Fatalf("NewSolverCollector: %v", err)
	}
	sc.ObserveSolve("boolean", solver.OutcomeOK, time.Millisecond, 3)
	rpc.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	rpc.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	rpc.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"segmenter_rpc_requests_total",
		"segmenter_rpc_duration_seconds",
		"segmenter_rpc_in_flight",
		`segmenter_solves_total{outcome="ok",strategy="boolean"} 1`,
		"segmenter_solve_duration_seconds",
		"segmenter_result_intervals",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestStdoutTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "segmenter-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() { _, _ = InitTracing(ctx, TracingConfig{}, nil) })

	_, span := otel.Tracer("test").Start(ctx, "solver.event")
	span.End()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "solver.event") {
		t.Fatalf("span not exported: %s", buf.String())
	}
}

func TestUnknownTracingExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon"}, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown exporter")
	}
}

func TestTracingExporterAliases(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ExporterStdout},
		{"STDOUT", ExporterStdout},
		{"otlp", ExporterOTLP},
		{" otlpgrpc ", ExporterOTLP},
	}
	for _, tt := range tests {
		got, err := TracingConfig{Exporter: tt.in}.exporter()
		if err != nil || got != tt.want {
			t.Fatalf("exporter(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTracingSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := (TracingConfig{SampleRatio: tt.ratio}).sampler().Description(); !strings.HasPrefix(got, tt.want) {
			t.Fatalf("sampler(%v) = %q, want prefix %q", tt.ratio, got, tt.want)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in, service, method string
	}{
		{"/segmenter.v1.Segmenter/Solve", "Segmenter", "Solve"},
		{"Segmenter/Solve", "Segmenter", "Solve"},
		{"", "unknown", "unknown"},
		{"/Solve", "unknown", "unknown"},
	}
	for _, tt := range tests {
		s, m := SplitMethod(tt.in)
		if s != tt.service || m != tt.method {
			t.Fatalf("SplitMethod(%q) = %q, %q", tt.in, s, m)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
