package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ogurasousui/workforce-scheduling/internal/adapters/grpc/handler"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Services はサーバーに登録する gRPC サービスです。nil のサービスは登録しません。
type Services struct {
	Scheduling handler.SchedulingServer
	Approval   handler.ApprovalServer
	Attendance handler.AttendanceServer
}

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
func New(listenAddr string, services Services, logger logrus.FieldLogger, m *metrics.Metrics, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryInterceptor(logger, m))}, opts...)
	srv := grpc.NewServer(opts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	if services.Scheduling != nil {
		handler.RegisterSchedulingServer(srv, services.Scheduling)
		healthSrv.SetServingStatus(handler.SchedulingServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	if services.Approval != nil {
		handler.RegisterApprovalServer(srv, services.Approval)
		healthSrv.SetServingStatus(handler.ApprovalServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	if services.Attendance != nil {
		handler.RegisterAttendanceServer(srv, services.Attendance)
		healthSrv.SetServingStatus(handler.AttendanceServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     healthSrv,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は lis で待ち受けます。コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はヘルスチェックを NOT_SERVING にしてからサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
