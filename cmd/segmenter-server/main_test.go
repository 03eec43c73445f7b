package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/trajectory-segmenter/internal/config"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/rpc"
)

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Server.ListenAddress = lis.Addr().String()
	cfg.Server.MetricsAddress = ""
	cfg.Log.Level = "warn"

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.Server.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{
		"query": map[string]any{
			"bodies": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b", "fixed": []any{50.0, 0.0, 0.0}},
			},
			"window":     map[string]any{"start": "2030-01-01", "end": "2030-01-02"},
			"properties": map[string]any{"d": map[string]any{"quantity": "distance", "observer": "a", "target": "b"}},
			"constraint": map[string]any{"property": "d", "op": "<", "value": 100.0, "unit": "km"},
		},
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	resp, err := rpc.NewClient(conn).Solve(ctx, req)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if got := resp.GetFields()["count"].GetNumberValue(); got != 1 {
		t.Fatalf("count = %v, want 1 (the whole window)", got)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
