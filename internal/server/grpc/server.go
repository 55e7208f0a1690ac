// Package grpc exposes the feed over gRPC.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

type Feed interface {
	Supports(game string) bool
	GetAnnouncements(ctx context.Context, game, language string, force bool) []models.AnnouncementView
	RefreshAll(ctx context.Context) services.RefreshReport
}

type GameLister interface {
	ListEnabled(ctx context.Context) ([]models.Game, error)
}

type GRPCServer struct {
	address   string
	feed      Feed
	games     GameLister
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, feed Feed, games GameLister, secretKey string) *GRPCServer {
	if l == nil {
		l = logging.Nop{}
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		feed:      feed,
		games:     games,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with the feed service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
