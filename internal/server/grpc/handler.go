package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/annfeed/internal/fetch"
)

func (s *GRPCServer) GetAnnouncements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	game := f["game"].GetStringValue()
	force := f["force"].GetBoolValue()

	language, err := fetch.NormalizeLanguage(f["language"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !s.feed.Supports(game) {
		return nil, status.Errorf(codes.InvalidArgument, "unknown game %q", game)
	}

	views := s.feed.GetAnnouncements(ctx, game, language, force)

	resp, err := ToStruct(map[string]any{
		"game_id":       game,
		"language":      language,
		"announcements": views,
	})
	if err != nil {
		s.logger.Error(ctx, err.Error())
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) RefreshAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report := s.feed.RefreshAll(ctx)
	if report.Error != "" {
		return nil, status.Error(codes.Unavailable, report.Error)
	}

	resp, err := ToStruct(report)
	if err != nil {
		s.logger.Error(ctx, err.Error())
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) ListGames(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	games, err := s.games.ListEnabled(ctx)
	if err != nil {
		s.logger.Error(ctx, "list games", "error", err)
		if errors.Is(err, context.Canceled) {
			return nil, status.Error(codes.Canceled, err.Error())
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	resp, err := ToStruct(map[string]any{"games": games})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "OK"})
}
