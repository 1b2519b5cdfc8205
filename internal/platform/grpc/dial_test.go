package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDialWithHealthConnectsToServingServer(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	conn, err := DialWithHealth(context.Background(), addr, 2*time.Second, nil)
	if err != nil {
		t.Fatalf("dial with health: %v", err)
	}
	defer conn.Close()
}

func TestDialWithHealthReportsHealthStage(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	_, err := DialWithHealth(context.Background(), addr, 300*time.Millisecond, nil)
	var dialErr *DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("error = %v, want *DialError", err)
	}
	if dialErr.Stage != DialStageHealth {
		t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageHealth)
	}
}

func TestDialWithHealthRequiresAddress(t *testing.T) {
	_, err := DialWithHealth(context.Background(), "  ", time.Second, nil)
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("error = %v, want connect-stage DialError", err)
	}
}

func TestDialErrorNilSafe(t *testing.T) {
	var err *DialError
	if err.Error() == "" {
		t.Fatal("expected fallback message")
	}
	if err.Unwrap() != nil {
		t.Fatal("expected nil unwrap")
	}
}
