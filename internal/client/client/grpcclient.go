// Package client is the gRPC client of the feed service used by the
// operator CLI.
package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"

	gs "github.com/dmitrijs2005/annfeed/internal/server/grpc"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewFeedClient connects lazily to endpointURL. accessToken may be empty
// for unprivileged calls. Extra dial options are appended after the
// defaults.
func NewFeedClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) invoke(ctx context.Context, method string, in map[string]any, out any) error {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, method, req, resp); err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}
	if err := gs.FromStruct(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetAnnouncements returns the active announcements of one game. force
// needs an admin token.
func (s *GRPCClient) GetAnnouncements(ctx context.Context, game, language string, force bool) ([]models.AnnouncementView, error) {
	var resp struct {
		Announcements []models.AnnouncementView `json:"announcements"`
	}
	err := s.invoke(ctx, gs.MethodGetAnnouncements, map[string]any{
		"game":     game,
		"language": language,
		"force":    force,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Announcements, nil
}

func (s *GRPCClient) RefreshAll(ctx context.Context) (services.RefreshReport, error) {
	var report services.RefreshReport
	err := s.invoke(ctx, gs.MethodRefreshAll, nil, &report)
	return report, err
}

func (s *GRPCClient) ListGames(ctx context.Context) ([]models.Game, error) {
	var resp struct {
		Games []models.Game `json:"games"`
	}
	if err := s.invoke(ctx, gs.MethodListGames, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := s.invoke(ctx, gs.MethodPing, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		if st.Message() == common.ErrTokenExpired.Error() {
			return errors.Join(ErrUnauthorized, common.ErrTokenExpired)
		}
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %s", st.Message())
	}
}
