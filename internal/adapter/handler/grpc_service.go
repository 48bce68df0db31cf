package handler

import (
	"context"

	"google.golang.org/grpc"
)

const (
	lendingServiceName = "library.v1.LendingService"

	borrowMethod        = "/" + lendingServiceName + "/Borrow"
	updateLendingMethod = "/" + lendingServiceName + "/UpdateLending"
	listLendingsMethod  = "/" + lendingServiceName + "/ListLendings"
)

type LendingServiceServer interface {
	Borrow(context.Context, *BorrowRequest) (*BorrowResponse, error)
	UpdateLending(context.Context, *UpdateLendingRequest) (*MessageResponse, error)
	ListLendings(context.Context, *ListLendingsRequest) (*ListLendingsResponse, error)
}

// LendingServiceDesc describes the service for grpc.Server.RegisterService.
// Messages travel through the json codec.
var LendingServiceDesc = grpc.ServiceDesc{
	ServiceName: lendingServiceName,
	HandlerType: (*LendingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Borrow", Handler: borrowHandler},
		{MethodName: "UpdateLending", Handler: updateLendingHandler},
		{MethodName: "ListLendings", Handler: listLendingsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterLendingServiceServer(s grpc.ServiceRegistrar, srv LendingServiceServer) {
	s.RegisterService(&LendingServiceDesc, srv)
}

func borrowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BorrowRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LendingServiceServer).Borrow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: borrowMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LendingServiceServer).Borrow(ctx, req.(*BorrowRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateLendingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateLendingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LendingServiceServer).UpdateLending(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: updateLendingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LendingServiceServer).UpdateLending(ctx, req.(*UpdateLendingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listLendingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListLendingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LendingServiceServer).ListLendings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listLendingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LendingServiceServer).ListLendings(ctx, req.(*ListLendingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LendingServiceClient calls the lending service over an existing connection.
type LendingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLendingServiceClient(cc grpc.ClientConnInterface) *LendingServiceClient {
	return &LendingServiceClient{cc: cc}
}

func (c *LendingServiceClient) Borrow(ctx context.Context, in *BorrowRequest, opts ...grpc.CallOption) (*BorrowResponse, error) {
	out := new(BorrowResponse)
	if err := c.cc.Invoke(ctx, borrowMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LendingServiceClient) UpdateLending(ctx context.Context, in *UpdateLendingRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.cc.Invoke(ctx, updateLendingMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LendingServiceClient) ListLendings(ctx context.Context, in *ListLendingsRequest, opts ...grpc.CallOption) (*ListLendingsResponse, error) {
	out := new(ListLendingsResponse)
	if err := c.cc.Invoke(ctx, listLendingsMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
