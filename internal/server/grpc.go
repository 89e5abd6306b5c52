package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/table"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// CoupServiceName is the fully qualified gRPC service name.
const CoupServiceName = "coup.v1.CoupService"

// CoupServer is the gRPC surface. Requests and responses are structpb
// documents whose fields mirror the websocket messages.
type CoupServer interface {
	CreateTable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinTable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartTable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTables(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitDecision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentResults(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type coupMethod func(CoupServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call coupMethod) grpc.MethodDesc {
	fullMethod := "/" + CoupServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CoupServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CoupServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CoupServiceDesc describes CoupServer for grpc.Server.RegisterService.
var CoupServiceDesc = grpc.ServiceDesc{
	ServiceName: CoupServiceName,
	HandlerType: (*CoupServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateTable", CoupServer.CreateTable),
		unaryHandler("JoinTable", CoupServer.JoinTable),
		unaryHandler("StartTable", CoupServer.StartTable),
		unaryHandler("ListTables", CoupServer.ListTables),
		unaryHandler("GetView", CoupServer.GetView),
		unaryHandler("SubmitDecision", CoupServer.SubmitDecision),
		unaryHandler("RecentResults", CoupServer.RecentResults),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coup/v1/coup.proto",
}

// RegisterCoupServer attaches srv to s.
func RegisterCoupServer(s grpc.ServiceRegistrar, srv CoupServer) {
	s.RegisterService(&CoupServiceDesc, srv)
}

// ResultLister reads persisted games.
type ResultLister interface {
	RecentResults(ctx context.Context, limit int) ([]game.Result, error)
}

// CoupService implements CoupServer on top of the table manager.
type CoupService struct {
	tables  *table.Manager
	results ResultLister
	version string
	logger  *zap.Logger
}

// NewCoupService creates the service. results may be nil when no database
// is configured.
func NewCoupService(tables *table.Manager, results ResultLister, version string, logger *zap.Logger) *CoupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoupService{
		tables:  tables,
		results: results,
		version: version,
		logger:  logger,
	}
}

// CoupClient calls CoupService over a client connection.
type CoupClient struct {
	cc grpc.ClientConnInterface
}

func NewCoupClient(cc grpc.ClientConnInterface) *CoupClient {
	return &CoupClient{cc: cc}
}

// Call invokes method with a request built from req.
func (c *CoupClient) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+CoupServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ==================== Helper Functions ====================

func stringField(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

func requireField(req *structpb.Struct, key string) (string, error) {
	v := stringField(req, key)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

// toStruct converts any JSON-encodable value into a structpb document.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// statusFromError maps domain errors onto gRPC status codes.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, table.ErrTableNotFound), errors.Is(err, game.ErrGameNotFound):
		code = codes.NotFound
	case errors.Is(err, table.ErrNameTaken):
		code = codes.AlreadyExists
	case errors.Is(err, table.ErrWrongPassword), errors.Is(err, table.ErrNotController),
		errors.Is(err, table.ErrNotSeated), errors.Is(err, game.ErrNotYourDecision):
		code = codes.PermissionDenied
	case errors.Is(err, game.ErrIllegalChoice), errors.Is(err, game.ErrWrongDecisionKind):
		code = codes.InvalidArgument
	case errors.Is(err, table.ErrAlreadyStarted), errors.Is(err, table.ErrLobbyFull),
		errors.Is(err, table.ErrNotStarted), errors.Is(err, table.ErrNoHumans),
		errors.Is(err, game.ErrNoPendingDecision), errors.Is(err, game.ErrGameNotFinished):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}

// extractHostFromContext returns the caller address, or "unknown".
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

func (s *CoupService) lookup(req *structpb.Struct) (*table.Table, error) {
	tableID, err := requireField(req, "table_id")
	if err != nil {
		return nil, err
	}
	tbl, err := s.tables.GetTable(tableID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return tbl, nil
}

func lobbyStruct(tbl *table.Table) (*structpb.Struct, error) {
	return toStruct(lobbyView(tbl.Snapshot()))
}

func withField(out *structpb.Struct, key string, v *structpb.Struct) *structpb.Struct {
	if out.Fields == nil {
		out.Fields = make(map[string]*structpb.Value)
	}
	out.Fields[key] = structpb.NewStructValue(v)
	return out
}
