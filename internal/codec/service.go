package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name for remote objectives.
const ServiceName = "nef.ObjectiveService"

const (
	evaluateMethod = "/" + ServiceName + "/Evaluate"
	describeMethod = "/" + ServiceName + "/Describe"
)

// #region service-interfaces
// ObjectiveServiceClient is the client API for the objective service. Messages
// are structpb.Struct values so no generated stubs are required.
//
// Evaluate request:  {"objective": string, "params": [number]}
// Evaluate response: {"loss": number, "grad": [number] (optional), "objectives": {name: number}}
// Describe request:  {"objective": string}
// Describe response: {"name": string, "initial": [number], "objectives": [string], "has_grad": bool}
type ObjectiveServiceClient interface {
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ObjectiveServiceServer is the server API for the objective service.
type ObjectiveServiceServer interface {
	Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// #endregion service-interfaces

// #region client-stub
type objectiveServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewObjectiveServiceClient wraps a connection in the service client API.
func NewObjectiveServiceClient(cc grpc.ClientConnInterface) ObjectiveServiceClient {
	return &objectiveServiceClient{cc: cc}
}

func (c *objectiveServiceClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *objectiveServiceClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-stub

// #region service-desc
// RegisterObjectiveServiceServer registers srv on s.
func RegisterObjectiveServiceServer(s grpc.ServiceRegistrar, srv ObjectiveServiceServer) {
	s.RegisterService(&objectiveServiceDesc, srv)
}

var objectiveServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ObjectiveServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Describe", Handler: describeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nef/objective",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjectiveServiceServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ObjectiveServiceServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func describeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObjectiveServiceServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ObjectiveServiceServer).Describe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region wire-helpers
func floatsToValue(v []float64) *structpb.Value {
	items := make([]*structpb.Value, len(v))
	for i, f := range v {
		items[i] = structpb.NewNumberValue(f)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: items})
}

func valueToFloats(v *structpb.Value) ([]float64, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("expected a list of numbers")
	}
	out := make([]float64, len(list.Values))
	for i, item := range list.Values {
		n, ok := item.Kind.(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// #endregion wire-helpers
