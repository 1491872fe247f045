package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/adapters/grpc/handler"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/logging"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeScheduling は必要なメソッドのみ実装し、それ以外は埋め込んだ nil インターフェースに委ねます。
type fakeScheduling struct {
	handler.SchedulingServer
}

func (fakeScheduling) GetWindow(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	tenant, _ := logging.FromContext(ctx).Data["tenant_id"].(string)
	return structpb.NewStruct(map[string]any{"tenant_id": tenant})
}

func (fakeScheduling) CreateShift(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	st, err := status.New(codes.FailedPrecondition, "conflict: schedule conflict (shift overlaps shift-9)").
		WithDetails(&errdetails.ErrorInfo{Reason: "OVERLAP", Domain: "workforce.scheduling"})
	if err != nil {
		return nil, err
	}
	return nil, st.Err()
}

func startServer(t *testing.T) (*grpc.ClientConn, *metrics.Metrics, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	m := metrics.New()

	srv := New("", Services{Scheduling: fakeScheduling{}}, logger, m)
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return conn, m, hook
}

func TestServer_RoundTrip(t *testing.T) {
	t.Parallel()

	conn, m, hook := startServer(t)

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		handler.MetadataTenantID, "tenant-1",
		handler.MetadataActorID, "mgr-1",
	)

	out := new(structpb.Struct)
	err := conn.Invoke(ctx, handler.FullMethod(handler.SchedulingServiceName, "GetWindow"), &structpb.Struct{}, out)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", out.GetFields()["tenant_id"].GetStringValue())

	err = conn.Invoke(ctx, handler.FullMethod(handler.SchedulingServiceName, "CreateShift"), &structpb.Struct{}, new(structpb.Struct))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	expected := `
# HELP workforce_schedule_conflicts_total Total number of rejected mutations broken down by conflict reason.
# TYPE workforce_schedule_conflicts_total counter
workforce_schedule_conflicts_total{reason="overlap"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "workforce_schedule_conflicts_total"))

	var levels []logrus.Level
	for _, e := range hook.AllEntries() {
		if e.Message == "grpc.request" {
			levels = append(levels, e.Level)
		}
	}
	require.Equal(t, []logrus.Level{logrus.InfoLevel, logrus.WarnLevel}, levels)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	conn, _, _ := startServer(t)
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.SchedulingServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.ApprovalServiceName})
	require.Equal(t, codes.NotFound, status.Code(err), "unregistered services are unknown to the health server")
}
