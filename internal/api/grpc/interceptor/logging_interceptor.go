package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"reseller-ledger-backend/internal/logger"
)

// requestID returns the caller supplied x-request-id header, if any.
func requestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	ids := md.Get("x-request-id")
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Unary logs every unary RPC and turns panics into codes.Internal.
func Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panic", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Debug("gRPC request",
				"method", info.FullMethod,
				"requestID", requestID(ctx),
				"code", status.Code(err).String(),
				"duration", time.Since(start).String(),
			)
		}()
		return handler(ctx, req)
	}
}

// Stream is the streaming counterpart of Unary, used by health watches and
// reflection.
func Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC stream panic", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Debug("gRPC stream",
				"method", info.FullMethod,
				"requestID", requestID(ss.Context()),
				"code", status.Code(err).String(),
				"duration", time.Since(start).String(),
			)
		}()
		return handler(srv, ss)
	}
}
