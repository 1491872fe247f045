package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// メッセージは google.protobuf.Struct で表現し、既定の proto コーデックで送受信します。
type structMethod[S any] func(srv S, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary[S any](serviceName, methodName string, call structMethod[S]) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + methodName
	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod はクライアントから呼び出す際のメソッド名を返します。
func FullMethod(serviceName, methodName string) string {
	return "/" + serviceName + "/" + methodName
}
