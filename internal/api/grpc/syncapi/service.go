// Package syncapi describes the ProfileSync control service. Messages are
// google.protobuf.Struct values carrying the JSON forms of the types below.
package syncapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "profilesync.v1.ProfileSync"

const (
	CreateProfileMethod          = "/" + ServiceName + "/CreateProfile"
	CreateProfileWithTrialMethod = "/" + ServiceName + "/CreateProfileWithTrial"
	UpdateProfileMethod          = "/" + ServiceName + "/UpdateProfile"
	GetTrialStatusMethod         = "/" + ServiceName + "/GetTrialStatus"
	GetQueueStatusMethod         = "/" + ServiceName + "/GetQueueStatus"
	ForceSyncMethod              = "/" + ServiceName + "/ForceSync"
)

// ProfileSyncServer is the server API for the ProfileSync service.
type ProfileSyncServer interface {
	CreateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProfileWithTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTrialStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetQueueStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForceSync(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterProfileSyncServer registers srv on s.
func RegisterProfileSyncServer(s grpc.ServiceRegistrar, srv ProfileSyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(ProfileSyncServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProfileSyncServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ProfileSyncServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for the ProfileSync service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProfileSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateProfile", Handler: unaryHandler(CreateProfileMethod, ProfileSyncServer.CreateProfile)},
		{MethodName: "CreateProfileWithTrial", Handler: unaryHandler(CreateProfileWithTrialMethod, ProfileSyncServer.CreateProfileWithTrial)},
		{MethodName: "UpdateProfile", Handler: unaryHandler(UpdateProfileMethod, ProfileSyncServer.UpdateProfile)},
		{MethodName: "GetTrialStatus", Handler: unaryHandler(GetTrialStatusMethod, ProfileSyncServer.GetTrialStatus)},
		{MethodName: "GetQueueStatus", Handler: unaryHandler(GetQueueStatusMethod, ProfileSyncServer.GetQueueStatus)},
		{MethodName: "ForceSync", Handler: unaryHandler(ForceSyncMethod, ProfileSyncServer.ForceSync)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "profilesync/v1/profilesync.proto",
}
