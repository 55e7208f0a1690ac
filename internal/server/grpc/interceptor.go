package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/server/auth"
)

type ctxKey string

const subjectKey ctxKey = "subject"

// requiresAdmin reports whether a call needs an admin token: sweeps
// always, reads only when they force a refresh.
func requiresAdmin(method string, req any) bool {
	switch method {
	case MethodRefreshAll:
		return true
	case MethodGetAnnouncements:
		in, ok := req.(*structpb.Struct)
		return ok && in.GetFields()["force"].GetBoolValue()
	}
	return false
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !requiresAdmin(info.FullMethod, req) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	sub, err := auth.VerifyAdminToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	s.logger.Info(ctx, "admin call", "method", info.FullMethod, "subject", sub)
	return handler(context.WithValue(ctx, subjectKey, sub), req)
}
