package simd

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newBufconnClient(t *testing.T) (*SimulationServiceClient, *RunExecutor) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	store := NewRunStore()
	exec := NewRunExecutor(store)
	s := grpc.NewServer()
	RegisterSimulationServiceServer(s, NewSimulationGRPCServer(store, exec))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return NewSimulationServiceClient(conn), exec
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func runOf(t *testing.T, resp *structpb.Struct) map[string]any {
	t.Helper()
	run, ok := resp.AsMap()["run"].(map[string]any)
	if !ok {
		t.Fatalf("expected run in response %v", resp.AsMap())
	}
	return run
}

func TestGRPCServerLifecycle(t *testing.T) {
	client, exec := newBufconnClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := client.CreateRun(ctx, mustStruct(t, map[string]any{
		"run_id":      "grpc-run",
		"config_yaml": quickConfig,
	}))
	if err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}
	if run := runOf(t, created); run["id"] != "grpc-run" || run["status"] != "pending" {
		t.Fatalf("unexpected created run %v", run)
	}

	started, err := client.StartRun(ctx, mustStruct(t, map[string]any{"run_id": "grpc-run"}))
	if err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	if runOf(t, started)["status"] != "running" {
		t.Fatalf("expected running, got %v", runOf(t, started)["status"])
	}

	if err := exec.Wait(ctx, "grpc-run"); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	got, err := client.GetRun(ctx, mustStruct(t, map[string]any{"run_id": "grpc-run"}))
	if err != nil {
		t.Fatalf("GetRun error: %v", err)
	}
	run := runOf(t, got)
	if run["status"] != "completed" {
		t.Fatalf("expected completed, got %v (error %v)", run["status"], run["error"])
	}
	if run["bundles"] != float64(3) {
		t.Errorf("expected 3 bundles, got %v", run["bundles"])
	}
	if summaries := run["summaries"].([]any); len(summaries) != 3 {
		t.Errorf("expected 3 summaries, got %d", len(summaries))
	}

	listed, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"status": "completed"}))
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if runs := listed.AsMap()["runs"].([]any); len(runs) != 1 {
		t.Errorf("expected 1 completed run, got %d", len(runs))
	}
}

func TestGRPCServerErrors(t *testing.T) {
	client, _ := newBufconnClient(t)
	ctx := context.Background()

	if _, err := client.CreateRun(ctx, mustStruct(t, map[string]any{"run_id": "dup", "config_yaml": quickConfig})); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"create without config", func() error {
			_, err := client.CreateRun(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"create invalid config", func() error {
			_, err := client.CreateRun(ctx, mustStruct(t, map[string]any{"config_yaml": "seed: 1"}))
			return err
		}, codes.InvalidArgument},
		{"create duplicate", func() error {
			_, err := client.CreateRun(ctx, mustStruct(t, map[string]any{"run_id": "dup", "config_yaml": quickConfig}))
			return err
		}, codes.AlreadyExists},
		{"create metadata callback", func() error {
			_, err := client.CreateRun(ctx, mustStruct(t, map[string]any{
				"config_yaml":  quickConfig,
				"callback_url": "http://169.254.169.254/latest",
			}))
			return err
		}, codes.InvalidArgument},
		{"start missing id", func() error {
			_, err := client.StartRun(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"start unknown", func() error {
			_, err := client.StartRun(ctx, mustStruct(t, map[string]any{"run_id": "nope"}))
			return err
		}, codes.NotFound},
		{"get unknown", func() error {
			_, err := client.GetRun(ctx, mustStruct(t, map[string]any{"run_id": "nope"}))
			return err
		}, codes.NotFound},
		{"list bad status", func() error {
			_, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"status": "done"}))
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if status.Code(err) != tt.want {
				t.Errorf("expected %v, got %v (%v)", tt.want, status.Code(err), err)
			}
		})
	}

	// Stopping twice is fine, starting a cancelled run is not
	for i := 0; i < 2; i++ {
		if _, err := client.StopRun(ctx, mustStruct(t, map[string]any{"run_id": "dup"})); err != nil {
			t.Fatalf("StopRun #%d error: %v", i+1, err)
		}
	}
	_, err := client.StartRun(ctx, mustStruct(t, map[string]any{"run_id": "dup"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition, got %v", err)
	}
}

func TestGRPCServerStreamRunEvents(t *testing.T) {
	client, exec := newBufconnClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := client.CreateRun(ctx, mustStruct(t, map[string]any{"run_id": "streamed", "config_yaml": quickConfig})); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}
	if _, err := exec.Start("streamed"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	stream, err := client.StreamRunEvents(ctx, mustStruct(t, map[string]any{"run_id": "streamed", "interval_ms": 10}))
	if err != nil {
		t.Fatalf("StreamRunEvents error: %v", err)
	}

	counts := map[string]int{}
	var last map[string]any
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv error: %v", err)
		}
		m := ev.AsMap()
		if m["run_id"] != "streamed" {
			t.Errorf("unexpected run_id %v", m["run_id"])
		}
		kind, _ := m["event"].(string)
		counts[kind]++
		if kind == "status_change" {
			last = m["data"].(map[string]any)
		}
	}

	if counts["summary"] != 3 {
		t.Errorf("expected 3 summary events, got %d", counts["summary"])
	}
	if last == nil || last["current"] != "completed" {
		t.Errorf("expected final status_change to completed, got %v", last)
	}
}

func TestGRPCServerStreamUnknownRun(t *testing.T) {
	client, _ := newBufconnClient(t)
	stream, err := client.StreamRunEvents(context.Background(), mustStruct(t, map[string]any{"run_id": "ghost"}))
	if err != nil {
		t.Fatalf("StreamRunEvents error: %v", err)
	}
	_, err = stream.Recv()
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
