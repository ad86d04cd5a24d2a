package interceptors

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary_LogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	ic := LoggingUnary(slog.New(slog.NewJSONHandler(&buf, nil)), metrics.New(reg))

	ctx := contextx.WithGroup(contextx.WithRequestID(t.Context(), "req-1"), "cart-writes")
	info := &grpc.UnaryServerInfo{FullMethod: "/rawrcart.Shop/AddItem"}
	_, err := ic(ctx, nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.DeadlineExceeded, "too slow")
	})
	if status.Code(err) != codes.DeadlineExceeded {
		t.Fatalf("error not passed through: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	want := map[string]string{
		"level":      "WARN",
		"method":     "/rawrcart.Shop/AddItem",
		"code":       "DeadlineExceeded",
		"request_id": "req-1",
		"group":      "cart-writes",
		"err":        "too slow",
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s = %v, want %q", k, line[k], v)
		}
	}

	if n, err := testutil.GatherAndCount(reg, "rawrcart_grpc_requests_total"); err != nil || n != 1 {
		t.Fatalf("request series = %d (err %v), want 1", n, err)
	}
}

func TestLoggingUnary_NilMetrics(t *testing.T) {
	var buf bytes.Buffer
	ic := LoggingUnary(slog.New(slog.NewTextHandler(&buf, nil)), nil)
	if _, err := ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/m"}, okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("nothing logged")
	}
}

func TestPolicyUnary_SetsGroupAndTimeout(t *testing.T) {
	resolver := policy.NewResolver(
		policy.Group("cart-writes").
			Exact("/rawrcart.Shop/AddItem").
			Policy(policy.Policy{Timeout: 3 * time.Second}),
		policy.Group("reads").
			Prefix("/rawrcart.Shop/Get"),
	)
	ic := PolicyUnary(resolver)

	var group string
	var budget time.Duration
	var hasBudget bool
	capture := func(ctx context.Context, _ any) (any, error) {
		group = contextx.GroupFromContext(ctx)
		budget, hasBudget = contextx.TimeoutFromContext(ctx)
		return nil, nil
	}

	_, _ = ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/rawrcart.Shop/AddItem"}, capture)
	if group != "cart-writes" || !hasBudget || budget != 3*time.Second {
		t.Fatalf("got group %q budget %v (%v)", group, budget, hasBudget)
	}

	_, _ = ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/rawrcart.Shop/GetCart"}, capture)
	if group != "reads" || hasBudget {
		t.Fatalf("got group %q budget %v (%v), want reads without budget", group, budget, hasBudget)
	}

	_, _ = ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/other.Svc/Call"}, capture)
	if group != "" || hasBudget {
		t.Fatalf("unmatched method got group %q", group)
	}
}
