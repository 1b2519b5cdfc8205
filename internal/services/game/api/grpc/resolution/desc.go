package resolution

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "narequenta.game.v1.ResolutionService"

const (
	methodApplyResolution = "/" + ServiceName + "/ApplyResolution"
	methodGetSheet        = "/" + ServiceName + "/GetSheet"
	methodGetRollData     = "/" + ServiceName + "/GetRollData"
	methodPutEntity       = "/" + ServiceName + "/PutEntity"
	methodPutPlacement    = "/" + ServiceName + "/PutPlacement"
)

// ResolutionServiceServer is the server API for ResolutionService.
type ResolutionServiceServer interface {
	ApplyResolution(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetSheet(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetRollData(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	PutEntity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutPlacement(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterResolutionServiceServer registers srv on s.
func RegisterResolutionServiceServer(s grpc.ServiceRegistrar, srv ResolutionServiceServer) {
	s.RegisterService(&ResolutionService_ServiceDesc, srv)
}

func stringHandler(call func(ResolutionServiceServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error), fullMethod string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(ResolutionServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func structHandler(call func(ResolutionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error), fullMethod string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(ResolutionServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ResolutionService_ServiceDesc is the grpc.ServiceDesc for ResolutionService.
var ResolutionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolutionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ApplyResolution",
			Handler:    stringHandler(ResolutionServiceServer.ApplyResolution, methodApplyResolution),
		},
		{
			MethodName: "GetSheet",
			Handler:    stringHandler(ResolutionServiceServer.GetSheet, methodGetSheet),
		},
		{
			MethodName: "GetRollData",
			Handler:    stringHandler(ResolutionServiceServer.GetRollData, methodGetRollData),
		},
		{
			MethodName: "PutEntity",
			Handler:    structHandler(ResolutionServiceServer.PutEntity, methodPutEntity),
		},
		{
			MethodName: "PutPlacement",
			Handler:    structHandler(ResolutionServiceServer.PutPlacement, methodPutPlacement),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "narequenta/game/v1/resolution.proto",
}
