package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the full gRPC service name. Requests and responses are
// google.protobuf.Struct messages carried by the default proto codec; the
// typed structs below are their Go form.
const ServiceName = "leadkeeper.LedgerService"

const (
	PurchaseMethod   = "/" + ServiceName + "/Purchase"
	GetLeadMethod    = "/" + ServiceName + "/GetLead"
	GetBalanceMethod = "/" + ServiceName + "/GetBalance"
)

type PurchaseRequest struct {
	LeadID     string
	FieldGroup string
}

type PurchaseResponse struct {
	Status        string
	LeadID        string
	FieldGroup    string
	Fields        map[string]any
	BalanceAfter  string
	TransactionID string
}

type GetLeadRequest struct {
	LeadID string
}

type GetLeadResponse struct {
	LeadID   string
	Fields   map[string]any
	Unlocked []string
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance string
}

// LedgerServiceServer is implemented by GRPCServer.
type LedgerServiceServer interface {
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	GetLead(context.Context, *GetLeadRequest) (*GetLeadResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
}

// incoming is a pointer to a request type that can be read from the wire.
type incoming[T any] interface {
	*T
	fromStruct(*structpb.Struct) error
}

// unary decodes a google.protobuf.Struct with the default proto codec and
// converts it to the typed request after the interceptor chain has run.
func unary[Req any, PReq incoming[Req]](method string, call func(LedgerServiceServer, context.Context, PReq) (message, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed := PReq(new(Req))
			if err := typed.fromStruct(req.(*structpb.Struct)); err != nil {
				return nil, err
			}
			out, err := call(srv.(LedgerServiceServer), ctx, typed)
			if err != nil {
				return nil, err
			}
			reply, err := out.toStruct()
			if err != nil {
				return nil, toStatus(err)
			}
			return reply, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceDesc describes the service for grpc.Server.RegisterService.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Purchase",
			Handler: unary(PurchaseMethod, func(s LedgerServiceServer, ctx context.Context, in *PurchaseRequest) (message, error) {
				return s.Purchase(ctx, in)
			}),
		},
		{
			MethodName: "GetLead",
			Handler: unary(GetLeadMethod, func(s LedgerServiceServer, ctx context.Context, in *GetLeadRequest) (message, error) {
				return s.GetLead(ctx, in)
			}),
		},
		{
			MethodName: "GetBalance",
			Handler: unary(GetBalanceMethod, func(s LedgerServiceServer, ctx context.Context, in *GetBalanceRequest) (message, error) {
				return s.GetBalance(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leadkeeper/ledger_service",
}

// LedgerServiceClient is a thin client for LedgerServiceDesc.
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func (c *LedgerServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	out := new(PurchaseResponse)
	if err := c.invoke(ctx, PurchaseMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) GetLead(ctx context.Context, in *GetLeadRequest, opts ...grpc.CallOption) (*GetLeadResponse, error) {
	out := new(GetLeadResponse)
	if err := c.invoke(ctx, GetLeadMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.invoke(ctx, GetBalanceMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) invoke(ctx context.Context, method string, in message, out interface{ fromStruct(*structpb.Struct) error }, opts []grpc.CallOption) error {
	req, err := in.toStruct()
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, reply, opts...); err != nil {
		return err
	}
	return out.fromStruct(reply)
}
