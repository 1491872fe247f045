package server

import (
	"context"
	"strings"
	"time"

	"github.com/ogurasousui/workforce-scheduling/internal/platform/logging"
	"github.com/ogurasousui/workforce-scheduling/internal/platform/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor はリクエストごとのロガーをコンテキストに格納し、結果をログとメトリクスに記録します。
func UnaryInterceptor(logger logrus.FieldLogger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()

		fields := logrus.Fields{"method": info.FullMethod}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-tenant-id"); len(v) > 0 {
				fields["tenant_id"] = v[0]
			}
			if v := md.Get("x-actor-id"); len(v) > 0 {
				fields["actor_id"] = v[0]
			}
		}
		entry := logger.WithFields(fields)
		ctx = logging.ContextWithLogger(ctx, entry)

		resp, err := next(ctx, req)

		elapsed := time.Since(start)
		st := status.Convert(err)
		m.ObserveRPC(info.FullMethod, st.Code().String(), elapsed)
		if reason, ok := conflictReason(st); ok {
			m.ObserveConflict(reason)
		}

		done := entry.WithFields(logrus.Fields{
			"code":       st.Code().String(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
		switch st.Code() {
		case codes.OK:
			done.Info("grpc.request")
		case codes.Internal, codes.Unknown, codes.DataLoss:
			done.WithField("error", st.Message()).Error("grpc.request")
		default:
			done.WithField("error", st.Message()).Warn("grpc.request")
		}

		return resp, err
	}
}

func conflictReason(st *status.Status) (string, bool) {
	if st.Code() != codes.FailedPrecondition {
		return "", false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() != "" {
			return strings.ToLower(info.GetReason()), true
		}
	}
	return "", false
}
