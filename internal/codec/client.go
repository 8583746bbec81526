package codec

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/nef-optimizer/internal/history"
	"github.com/danielpatrickdp/nef-optimizer/internal/objective"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// Evaluation holds the response from an Evaluate RPC call.
type Evaluation struct {
	Loss       float64
	Grad       []float64 // nil when the remote problem has no gradient
	Objectives map[string]float64
}

// Description holds the response from a Describe RPC call.
type Description struct {
	Name       string
	Initial    []float64
	Objectives []string
	HasGrad    bool
}

// #endregion types

// #region client-struct
// ObjectiveClient wraps the gRPC connection to a remote objective server.
type ObjectiveClient struct {
	conn    *grpc.ClientConn
	client  ObjectiveServiceClient
	health  healthpb.HealthClient
	limiter *rate.Limiter
}

// ClientOption customizes an ObjectiveClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	dialOpts []grpc.DialOption
	limiter  *rate.Limiter
}

// WithRateLimit caps outgoing RPCs at limit per second with the given burst.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(o *clientOptions) { o.limiter = rate.NewLimiter(limit, burst) }
}

// WithDialOptions appends dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(o *clientOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}

// #endregion client-struct

// #region constructor
// NewObjectiveClient connects to a remote objective gRPC server.
func NewObjectiveClient(addr string, opts ...ClientOption) (*ObjectiveClient, error) {
	o := clientOptions{
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(&o)
	}
	conn, err := grpc.NewClient(addr, o.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &ObjectiveClient{
		conn:    conn,
		client:  NewObjectiveServiceClient(conn),
		health:  healthpb.NewHealthClient(conn),
		limiter: o.limiter,
	}, nil
}

// NewObjectiveClientWithService creates an ObjectiveClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewObjectiveClientWithService(svc ObjectiveServiceClient) *ObjectiveClient {
	return &ObjectiveClient{client: svc}
}

// Close shuts down the gRPC connection.
func (c *ObjectiveClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region health
// Ping asks the server's health service whether the objective service is serving.
func (c *ObjectiveClient) Ping(ctx context.Context) error {
	if c.health == nil {
		return fmt.Errorf("ping: no connection")
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health rpc: %w", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("objective service status %s", resp.Status)
	}
	return nil
}

// #endregion health

// #region evaluate
// Evaluate asks the server for the loss, gradient and per-objective values at params.
func (c *ObjectiveClient) Evaluate(ctx context.Context, name string, params []float64) (Evaluation, error) {
	if err := c.wait(ctx); err != nil {
		return Evaluation{}, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"objective": structpb.NewStringValue(name),
		"params":    floatsToValue(params),
	}}
	resp, err := c.client.Evaluate(ctx, req)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate rpc: %w", mapStatus(name, err))
	}

	fields := resp.GetFields()
	lossVal, ok := fields["loss"]
	if !ok {
		return Evaluation{}, fmt.Errorf("evaluate rpc: response has no loss")
	}
	ev := Evaluation{Loss: lossVal.GetNumberValue(), Objectives: map[string]float64{}}
	if g, ok := fields["grad"]; ok {
		if ev.Grad, err = valueToFloats(g); err != nil {
			return Evaluation{}, fmt.Errorf("evaluate rpc: grad: %w", err)
		}
	}
	for k, v := range fields["objectives"].GetStructValue().GetFields() {
		ev.Objectives[k] = v.GetNumberValue()
	}
	return ev, nil
}

// #endregion evaluate

// #region describe
// Describe fetches a remote problem's starting point and objective names.
func (c *ObjectiveClient) Describe(ctx context.Context, name string) (Description, error) {
	if err := c.wait(ctx); err != nil {
		return Description{}, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"objective": structpb.NewStringValue(name),
	}}
	resp, err := c.client.Describe(ctx, req)
	if err != nil {
		return Description{}, fmt.Errorf("describe rpc: %w", mapStatus(name, err))
	}

	fields := resp.GetFields()
	d := Description{
		Name:    stringField(resp, "name"),
		HasGrad: fields["has_grad"].GetBoolValue(),
	}
	if d.Initial, err = valueToFloats(fields["initial"]); err != nil {
		return Description{}, fmt.Errorf("describe rpc: initial: %w", err)
	}
	for _, v := range fields["objectives"].GetListValue().GetValues() {
		d.Objectives = append(d.Objectives, v.GetStringValue())
	}
	return d, nil
}

// #endregion describe

// #region problem
// Problem builds an objective.Problem whose functions call the remote server.
// ctx bounds every call the returned problem makes. Loss, gradient and
// per-objective values at the same point share a single Evaluate RPC.
func (c *ObjectiveClient) Problem(ctx context.Context, name string) (objective.Problem, error) {
	d, err := c.Describe(ctx, name)
	if err != nil {
		return objective.Problem{}, err
	}

	r := &remoteProblem{client: c, ctx: ctx, name: name}
	p := objective.Problem{
		Name:    d.Name,
		Loss:    r.loss,
		Initial: d.Initial,
	}
	if d.HasGrad {
		p.Grad = r.grad
	}
	if len(d.Objectives) > 0 {
		p.Objectives = make(objective.Set, len(d.Objectives))
		for _, objName := range d.Objectives {
			p.Objectives[objName] = r.objective(objName)
		}
	}
	return p, nil
}

type remoteProblem struct {
	client *ObjectiveClient
	ctx    context.Context
	name   string

	mu     sync.Mutex
	last   []float64
	result Evaluation
}

func (r *remoteProblem) evaluate(params []float64) (Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil && equal(r.last, params) {
		return r.result, nil
	}
	ev, err := r.client.Evaluate(r.ctx, r.name, params)
	if err != nil {
		return Evaluation{}, err
	}
	r.last = history.Clone(params)
	r.result = ev
	return ev, nil
}

func (r *remoteProblem) loss(params []float64) (float64, error) {
	ev, err := r.evaluate(params)
	return ev.Loss, err
}

func (r *remoteProblem) grad(params []float64) ([]float64, error) {
	ev, err := r.evaluate(params)
	if err != nil {
		return nil, err
	}
	if ev.Grad == nil {
		return nil, fmt.Errorf("remote objective %s returned no gradient", r.name)
	}
	return history.Clone(ev.Grad), nil
}

func (r *remoteProblem) objective(name string) objective.Func {
	return func(params []float64) (float64, error) {
		ev, err := r.evaluate(params)
		if err != nil {
			return 0, err
		}
		v, ok := ev.Objectives[name]
		if !ok {
			return 0, fmt.Errorf("remote objective %s returned no value for %s", r.name, name)
		}
		return v, nil
	}
}

// #endregion problem

// #region helpers
func (c *ObjectiveClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// mapStatus turns a NotFound status into objective.ErrUnknownObjective.
func mapStatus(name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%q: %w", name, objective.ErrUnknownObjective)
	}
	return err
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion helpers
