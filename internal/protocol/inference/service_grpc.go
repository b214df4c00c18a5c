package inference

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	GRPCInferenceService_ServerLive_FullMethodName       = "/" + ServiceName + "/ServerLive"
	GRPCInferenceService_ServerReady_FullMethodName      = "/" + ServiceName + "/ServerReady"
	GRPCInferenceService_ModelReady_FullMethodName       = "/" + ServiceName + "/ModelReady"
	GRPCInferenceService_ModelInfer_FullMethodName       = "/" + ServiceName + "/ModelInfer"
	GRPCInferenceService_ModelConfig_FullMethodName      = "/" + ServiceName + "/ModelConfig"
	GRPCInferenceService_ModelStreamInfer_FullMethodName = "/" + ServiceName + "/ModelStreamInfer"
)

// UnmodelledMethods lists the protocol RPCs whose messages are not modelled.
// They are served by GRPCInferenceServiceServer.NotImplemented.
var UnmodelledMethods = []string{
	"ServerMetadata",
	"ModelMetadata",
	"ModelStatistics",
	"RepositoryIndex",
	"RepositoryModelLoad",
	"RepositoryModelUnload",
	"SystemSharedMemoryStatus",
	"SystemSharedMemoryRegister",
	"SystemSharedMemoryUnregister",
	"CudaSharedMemoryStatus",
	"CudaSharedMemoryRegister",
	"CudaSharedMemoryUnregister",
	"TraceSetting",
	"LogSettings",
}

// GRPCInferenceServiceClient is the client API for GRPCInferenceService.
type GRPCInferenceServiceClient interface {
	ServerLive(ctx context.Context, in *ServerLiveRequest, opts ...grpc.CallOption) (*ServerLiveResponse, error)
	ServerReady(ctx context.Context, in *ServerReadyRequest, opts ...grpc.CallOption) (*ServerReadyResponse, error)
	ModelReady(ctx context.Context, in *ModelReadyRequest, opts ...grpc.CallOption) (*ModelReadyResponse, error)
	ModelInfer(ctx context.Context, in *ModelInferRequest, opts ...grpc.CallOption) (*ModelInferResponse, error)
	ModelConfig(ctx context.Context, in *ModelConfigRequest, opts ...grpc.CallOption) (*ModelConfigResponse, error)
	ModelStreamInfer(ctx context.Context, opts ...grpc.CallOption) (GRPCInferenceService_ModelStreamInferClient, error)
}

type grpcInferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCInferenceServiceClient returns a client bound to cc.
func NewGRPCInferenceServiceClient(cc grpc.ClientConnInterface) GRPCInferenceServiceClient {
	return &grpcInferenceServiceClient{cc}
}

func (c *grpcInferenceServiceClient) ServerLive(ctx context.Context, in *ServerLiveRequest, opts ...grpc.CallOption) (*ServerLiveResponse, error) {
	out := new(ServerLiveResponse)
	if err := c.cc.Invoke(ctx, GRPCInferenceService_ServerLive_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ServerReady(ctx context.Context, in *ServerReadyRequest, opts ...grpc.CallOption) (*ServerReadyResponse, error) {
	out := new(ServerReadyResponse)
	if err := c.cc.Invoke(ctx, GRPCInferenceService_ServerReady_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelReady(ctx context.Context, in *ModelReadyRequest, opts ...grpc.CallOption) (*ModelReadyResponse, error) {
	out := new(ModelReadyResponse)
	if err := c.cc.Invoke(ctx, GRPCInferenceService_ModelReady_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelInfer(ctx context.Context, in *ModelInferRequest, opts ...grpc.CallOption) (*ModelInferResponse, error) {
	out := new(ModelInferResponse)
	if err := c.cc.Invoke(ctx, GRPCInferenceService_ModelInfer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelConfig(ctx context.Context, in *ModelConfigRequest, opts ...grpc.CallOption) (*ModelConfigResponse, error) {
	out := new(ModelConfigResponse)
	if err := c.cc.Invoke(ctx, GRPCInferenceService_ModelConfig_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelStreamInfer(ctx context.Context, opts ...grpc.CallOption) (GRPCInferenceService_ModelStreamInferClient, error) {
	stream, err := c.cc.NewStream(ctx, &GRPCInferenceService_ServiceDesc.Streams[0], GRPCInferenceService_ModelStreamInfer_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpcInferenceServiceModelStreamInferClient{stream}, nil
}

// GRPCInferenceService_ModelStreamInferClient is the client side of ModelStreamInfer.
type GRPCInferenceService_ModelStreamInferClient interface {
	Send(*ModelInferRequest) error
	Recv() (*ModelStreamInferResponse, error)
	grpc.ClientStream
}

type grpcInferenceServiceModelStreamInferClient struct {
	grpc.ClientStream
}

func (x *grpcInferenceServiceModelStreamInferClient) Send(m *ModelInferRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *grpcInferenceServiceModelStreamInferClient) Recv() (*ModelStreamInferResponse, error) {
	m := new(ModelStreamInferResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GRPCInferenceServiceServer is the server API for GRPCInferenceService.
type GRPCInferenceServiceServer interface {
	ServerLive(context.Context, *ServerLiveRequest) (*ServerLiveResponse, error)
	ServerReady(context.Context, *ServerReadyRequest) (*ServerReadyResponse, error)
	ModelReady(context.Context, *ModelReadyRequest) (*ModelReadyResponse, error)
	ModelInfer(context.Context, *ModelInferRequest) (*ModelInferResponse, error)
	ModelConfig(context.Context, *ModelConfigRequest) (*ModelConfigResponse, error)
	ModelStreamInfer(GRPCInferenceService_ModelStreamInferServer) error
	// NotImplemented answers every method listed in UnmodelledMethods.
	NotImplemented(ctx context.Context, method string) error
}

// UnimplementedGRPCInferenceServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedGRPCInferenceServiceServer struct{}

func (UnimplementedGRPCInferenceServiceServer) ServerLive(context.Context, *ServerLiveRequest) (*ServerLiveResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ServerLive not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ServerReady(context.Context, *ServerReadyRequest) (*ServerReadyResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ServerReady not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelReady(context.Context, *ModelReadyRequest) (*ModelReadyResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelReady not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelInfer(context.Context, *ModelInferRequest) (*ModelInferResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelInfer not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelConfig(context.Context, *ModelConfigRequest) (*ModelConfigResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelConfig not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelStreamInfer(GRPCInferenceService_ModelStreamInferServer) error {
	return status.Errorf(codes.Unimplemented, "method ModelStreamInfer not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) NotImplemented(_ context.Context, method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// RegisterGRPCInferenceServiceServer registers srv with s.
func RegisterGRPCInferenceServiceServer(s grpc.ServiceRegistrar, srv GRPCInferenceServiceServer) {
	s.RegisterService(&GRPCInferenceService_ServiceDesc, srv)
}

// GRPCInferenceService_ModelStreamInferServer is the server side of ModelStreamInfer.
type GRPCInferenceService_ModelStreamInferServer interface {
	Send(*ModelStreamInferResponse) error
	Recv() (*ModelInferRequest, error)
	grpc.ServerStream
}

type grpcInferenceServiceModelStreamInferServer struct {
	grpc.ServerStream
}

func (x *grpcInferenceServiceModelStreamInferServer) Send(m *ModelStreamInferResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *grpcInferenceServiceModelStreamInferServer) Recv() (*ModelInferRequest, error) {
	m := new(ModelInferRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func modelStreamInferHandler(srv any, stream grpc.ServerStream) error {
	return srv.(GRPCInferenceServiceServer).ModelStreamInfer(&grpcInferenceServiceModelStreamInferServer{stream})
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req any](fullMethod string, call func(GRPCInferenceServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(GRPCInferenceServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GRPCInferenceService_ServiceDesc is the grpc.ServiceDesc for GRPCInferenceService.
var GRPCInferenceService_ServiceDesc = serviceDesc()

func serviceDesc() grpc.ServiceDesc {
	methods := []grpc.MethodDesc{
		{
			MethodName: "ServerLive",
			Handler: unaryHandler(GRPCInferenceService_ServerLive_FullMethodName, func(s GRPCInferenceServiceServer, ctx context.Context, in *ServerLiveRequest) (any, error) {
				return s.ServerLive(ctx, in)
			}),
		},
		{
			MethodName: "ServerReady",
			Handler: unaryHandler(GRPCInferenceService_ServerReady_FullMethodName, func(s GRPCInferenceServiceServer, ctx context.Context, in *ServerReadyRequest) (any, error) {
				return s.ServerReady(ctx, in)
			}),
		},
		{
			MethodName: "ModelReady",
			Handler: unaryHandler(GRPCInferenceService_ModelReady_FullMethodName, func(s GRPCInferenceServiceServer, ctx context.Context, in *ModelReadyRequest) (any, error) {
				return s.ModelReady(ctx, in)
			}),
		},
		{
			MethodName: "ModelInfer",
			Handler: unaryHandler(GRPCInferenceService_ModelInfer_FullMethodName, func(s GRPCInferenceServiceServer, ctx context.Context, in *ModelInferRequest) (any, error) {
				return s.ModelInfer(ctx, in)
			}),
		},
		{
			MethodName: "ModelConfig",
			Handler: unaryHandler(GRPCInferenceService_ModelConfig_FullMethodName, func(s GRPCInferenceServiceServer, ctx context.Context, in *ModelConfigRequest) (any, error) {
				return s.ModelConfig(ctx, in)
			}),
		},
	}
	for _, method := range UnmodelledMethods {
		methods = append(methods, grpc.MethodDesc{
			MethodName: method,
			// The payload is decoded into Empty so that it is consumed and
			// kept as unknown fields for interceptors that log it.
			Handler: unaryHandler("/"+ServiceName+"/"+method, func(s GRPCInferenceServiceServer, ctx context.Context, _ *emptypb.Empty) (any, error) {
				return nil, s.NotImplemented(ctx, method)
			}),
		})
	}
	return grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*GRPCInferenceServiceServer)(nil),
		Methods:     methods,
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "ModelStreamInfer",
				Handler:       modelStreamInferHandler,
				ServerStreams: true,
				ClientStreams: true,
			},
		},
		Metadata: fileName,
	}
}
