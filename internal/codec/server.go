package codec

import (
	"context"
	"fmt"
	"net"

	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server exposes local objective problems over gRPC.
type Server struct {
	problems map[string]objective.Problem
}

// NewServer serves the given problems, keyed by Problem.Name.
func NewServer(problems ...objective.Problem) *Server {
	s := &Server{problems: make(map[string]objective.Problem, len(problems))}
	for _, p := range problems {
		s.problems[p.Name] = p
	}
	return s
}

// NewRegistryServer serves every built-in problem.
func NewRegistryServer() *Server {
	var problems []objective.Problem
	for _, name := range objective.Registered() {
		p, _ := objective.Lookup(name)
		problems = append(problems, p)
	}
	return NewServer(problems...)
}

// Register attaches the objective service and a health service to gs.
func (s *Server) Register(gs *grpc.Server) *health.Server {
	RegisterObjectiveServiceServer(gs, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	gs := grpc.NewServer()
	hs := s.Register(gs)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

// #endregion server

// #region handlers
// Evaluate implements ObjectiveServiceServer.
func (s *Server) Evaluate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	paramsVal, ok := in.GetFields()["params"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing params")
	}
	params, err := valueToFloats(paramsVal)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "params: %v", err)
	}
	if len(params) != len(p.Initial) {
		return nil, status.Errorf(codes.InvalidArgument, "params have %d components, want %d", len(params), len(p.Initial))
	}

	loss, err := p.Loss(params)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "loss: %v", err)
	}
	fields := map[string]*structpb.Value{
		"loss": structpb.NewNumberValue(loss),
	}
	if p.Grad != nil {
		grad, err := p.Grad(params)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "grad: %v", err)
		}
		fields["grad"] = floatsToValue(grad)
	}
	objectives := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	for _, name := range p.ObjectiveSet().Names() {
		v, err := p.ObjectiveSet()[name](params)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "objective %s: %v", name, err)
		}
		objectives.Fields[name] = structpb.NewNumberValue(v)
	}
	fields["objectives"] = structpb.NewStructValue(objectives)
	return &structpb.Struct{Fields: fields}, nil
}

// Describe implements ObjectiveServiceServer.
func (s *Server) Describe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.lookup(in)
	if err != nil {
		return nil, err
	}
	var names []*structpb.Value
	for _, name := range p.ObjectiveSet().Names() {
		names = append(names, structpb.NewStringValue(name))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":       structpb.NewStringValue(p.Name),
		"initial":    floatsToValue(p.Initial),
		"objectives": structpb.NewListValue(&structpb.ListValue{Values: names}),
		"has_grad":   structpb.NewBoolValue(p.Grad != nil),
	}}, nil
}

func (s *Server) lookup(in *structpb.Struct) (objective.Problem, error) {
	name := stringField(in, "objective")
	if name == "" {
		return objective.Problem{}, status.Error(codes.InvalidArgument, "missing objective")
	}
	p, ok := s.problems[name]
	if !ok {
		return objective.Problem{}, status.Error(codes.NotFound, fmt.Sprintf("%q: %v", name, objective.ErrUnknownObjective))
	}
	return p, nil
}

var _ ObjectiveServiceServer = (*Server)(nil)

// #endregion handlers

