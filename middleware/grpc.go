package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor creates a gRPC unary server interceptor that blocks
// RPCs while the guard reports a non-usable license state.
// It works similarly to the HTTP middleware but adapted for gRPC context.
func (m *GuardMiddleware) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	m.Startup()

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if m == nil || m.guard == nil {
			return handler(ctx, req)
		}

		if err := m.denyIfUnusable(); err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// StreamServerInterceptor creates a gRPC stream server interceptor that
// blocks streams while the guard reports a non-usable license state.
func (m *GuardMiddleware) StreamServerInterceptor() grpc.StreamServerInterceptor {
	m.Startup()

	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if m == nil || m.guard == nil {
			return handler(srv, ss)
		}

		if err := m.denyIfUnusable(); err != nil {
			return err
		}

		return handler(srv, ss)
	}
}

// denyIfUnusable converts a non-usable guard status to a gRPC error.
func (m *GuardMiddleware) denyIfUnusable() error {
	res := m.guard.CurrentStatus()
	if res.Status.Usable() {
		return nil
	}

	d := denialFor(res)

	return status.Errorf(codes.PermissionDenied, "%s: %s", d.Code, d.Message)
}
