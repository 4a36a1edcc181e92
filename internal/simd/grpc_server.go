package simd

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

const simulationServiceName = "egosim.v1.SimulationService"

// SimulationServiceServer is the server API for the simulation service.
// Requests and responses are google.protobuf.Struct messages.
type SimulationServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamRunEvents(*structpb.Struct, SimulationService_StreamRunEventsServer) error
}

// SimulationService_StreamRunEventsServer is the server side of StreamRunEvents
type SimulationService_StreamRunEventsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type streamRunEventsServer struct {
	grpc.ServerStream
}

func (x *streamRunEventsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type unaryMethod func(SimulationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(SimulationServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + simulationServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamRunEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SimulationServiceServer).StreamRunEvents(in, &streamRunEventsServer{stream})
}

// SimulationServiceDesc describes egosim.v1.SimulationService for grpc.Server registration
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: simulationServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRun", Handler: unaryHandler("CreateRun", SimulationServiceServer.CreateRun)},
		{MethodName: "StartRun", Handler: unaryHandler("StartRun", SimulationServiceServer.StartRun)},
		{MethodName: "StopRun", Handler: unaryHandler("StopRun", SimulationServiceServer.StopRun)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", SimulationServiceServer.GetRun)},
		{MethodName: "ListRuns", Handler: unaryHandler("ListRuns", SimulationServiceServer.ListRuns)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamRunEvents",
			Handler:       streamRunEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "egosim/v1/simulation.proto",
}

// RegisterSimulationServiceServer registers srv on s
func RegisterSimulationServiceServer(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

// SimulationGRPCServer implements SimulationServiceServer using a RunStore backend.
type SimulationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewSimulationGRPCServer creates a new SimulationGRPCServer with the provided RunStore and RunExecutor.
func NewSimulationGRPCServer(store *RunStore, executor *RunExecutor) *SimulationGRPCServer {
	return &SimulationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *SimulationGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := RunInput{
		ConfigYAML:     stringField(req, "config_yaml"),
		CallbackURL:    stringField(req, "callback_url"),
		CallbackSecret: stringField(req, "callback_secret"),
	}
	if input.ConfigYAML == "" {
		return nil, status.Error(codes.InvalidArgument, "config_yaml is required")
	}
	if input.CallbackURL != "" {
		if err := validateCallbackURL(input.CallbackURL); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	rec, err := s.store.Create(stringField(req, "run_id"), input)
	if err != nil {
		if errors.Is(err, ErrRunExists) {
			return nil, status.Error(codes.AlreadyExists, err.Error())
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logger.Info("run created", "run_id", rec.Run.ID)
	return runResponse(rec.Run)
}

func (s *SimulationGRPCServer) StartRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}

	updated, err := s.Executor.Start(runID)
	if err != nil {
		return nil, grpcError(err)
	}

	logger.Info("run started (executor)", "run_id", runID)
	return runResponse(updated.Run)
}

func (s *SimulationGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}

	updated, err := s.Executor.Stop(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run cancelled", "run_id", runID)
	return runResponse(updated.Run)
}

func (s *SimulationGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec.Run)
}

func (s *SimulationGRPCServer) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := int(numberField(req, "limit"))
	offset := int(numberField(req, "offset"))
	if offset < 0 {
		offset = 0
	}
	st := models.RunStatus(stringField(req, "status"))
	if st != "" && !validStatus(st) {
		return nil, status.Errorf(codes.InvalidArgument, "unknown status: %s", st)
	}

	recs := s.store.List(limit, offset, st)
	runs := make([]any, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, runToMap(rec.Run))
	}
	out, err := structpb.NewStruct(map[string]any{"runs": runs})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *SimulationGRPCServer) StreamRunEvents(req *structpb.Struct, stream SimulationService_StreamRunEventsServer) error {
	runID := stringField(req, "run_id")
	if runID == "" {
		return status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return status.Error(codes.NotFound, "run not found")
	}

	interval := 500 * time.Millisecond
	if ms := numberField(req, "interval_ms"); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var previous models.RunStatus
	sent := 0
	for {
		if rec.Run.Status != previous {
			if err := sendEvent(stream, runID, "status_change", map[string]any{
				"previous": string(previous),
				"current":  string(rec.Run.Status),
			}); err != nil {
				return err
			}
			previous = rec.Run.Status
		}
		for ; sent < len(rec.Run.Summaries); sent++ {
			if err := sendEvent(stream, runID, "summary", summaryToMap(rec.Run.Summaries[sent])); err != nil {
				return err
			}
		}
		if rec.Run.Status == models.RunStatusRunning && rec.Run.Progress != nil {
			if err := sendEvent(stream, runID, "progress", progressToMap(*rec.Run.Progress)); err != nil {
				return err
			}
		}
		if rec.Run.Status.Terminal() {
			return nil
		}

		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
		}

		rec, ok = s.store.Get(runID)
		if !ok {
			return status.Error(codes.NotFound, "run not found")
		}
	}
}

func sendEvent(stream SimulationService_StreamRunEventsServer, runID, kind string, data map[string]any) error {
	ev, err := structpb.NewStruct(map[string]any{
		"run_id":     runID,
		"at_unix_ms": time.Now().UTC().UnixMilli(),
		"event":      kind,
		"data":       data,
	})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(ev)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func runResponse(run *models.Run) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{"run": runToMap(run)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// runToMap flattens a run into values structpb accepts
func runToMap(run *models.Run) map[string]any {
	summaries := make([]any, 0, len(run.Summaries))
	for _, sm := range run.Summaries {
		summaries = append(summaries, summaryToMap(sm))
	}
	out := map[string]any{
		"id":                 run.ID,
		"status":             string(run.Status),
		"error":              run.Error,
		"created_at_unix_ms": run.CreatedAtUnixMs,
		"started_at_unix_ms": run.StartedAtUnixMs,
		"ended_at_unix_ms":   run.EndedAtUnixMs,
		"egos":               run.Egos,
		"ego_ratio":          run.EgoRatio,
		"bundles":            len(run.Results),
		"summaries":          summaries,
	}
	if run.Progress != nil {
		out["progress"] = progressToMap(*run.Progress)
	}
	return out
}

func progressToMap(p models.Progress) map[string]any {
	return map[string]any{
		"tasks_total":         p.TasksTotal,
		"tasks_done":          p.TasksDone,
		"repetitions":         p.Repetitions,
		"elapsed_ms":          p.ElapsedMs,
		"task_mean_ms":        p.TaskMeanMs,
		"task_p95_ms":         p.TaskP95Ms,
		"repetitions_per_sec": p.RepetitionsPerSec,
	}
}

func summaryToMap(sm models.Summary) map[string]any {
	return map[string]any{
		"name":    sm.Name,
		"design":  string(sm.Design),
		"model":   sm.Model,
		"n":       sm.N,
		"tau":     sm.Tau,
		"mean":    sm.Mean,
		"std_dev": sm.StdDev,
		"std_err": sm.StdErr,
		"bias":    sm.Bias,
		"rmse":    sm.RMSE,
	}
}

// SimulationServiceClient calls egosim.v1.SimulationService over a client connection
type SimulationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSimulationServiceClient(cc grpc.ClientConnInterface) *SimulationServiceClient {
	return &SimulationServiceClient{cc: cc}
}

func (c *SimulationServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+simulationServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulationServiceClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRun", in, opts...)
}

func (c *SimulationServiceClient) StartRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartRun", in, opts...)
}

func (c *SimulationServiceClient) StopRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopRun", in, opts...)
}

func (c *SimulationServiceClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts...)
}

func (c *SimulationServiceClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts...)
}

// StreamRunEvents opens a server stream of run events
func (c *SimulationServiceClient) StreamRunEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*RunEventStream, error) {
	stream, err := c.cc.NewStream(ctx, &SimulationServiceDesc.Streams[0], "/"+simulationServiceName+"/StreamRunEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &RunEventStream{stream: stream}, nil
}

// RunEventStream receives events from StreamRunEvents
type RunEventStream struct {
	stream grpc.ClientStream
}

// Recv returns the next event, or io.EOF once the run is terminal
func (x *RunEventStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
