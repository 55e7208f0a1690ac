package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct values, so no generated stubs are needed.
const ServiceName = "annfeed.v1.FeedService"

const (
	MethodGetAnnouncements = "/" + ServiceName + "/GetAnnouncements"
	MethodRefreshAll       = "/" + ServiceName + "/RefreshAll"
	MethodListGames        = "/" + ServiceName + "/ListGames"
	MethodPing             = "/" + ServiceName + "/Ping"
)

// FeedServer is implemented by GRPCServer.
type FeedServer interface {
	GetAnnouncements(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(FeedServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(FeedServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(FeedServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAnnouncements", Handler: unary(MethodGetAnnouncements, FeedServer.GetAnnouncements)},
		{MethodName: "RefreshAll", Handler: unary(MethodRefreshAll, FeedServer.RefreshAll)},
		{MethodName: "ListGames", Handler: unary(MethodListGames, FeedServer.ListGames)},
		{MethodName: "Ping", Handler: unary(MethodPing, FeedServer.Ping)},
	},
	Metadata: "annfeed/v1/feed.proto",
}

// ToStruct converts a JSON-serialisable value into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return out, nil
}

// FromStruct decodes a Struct into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
