// Package grpc exposes read-only stock queries to other services.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/inventory-hub/internal/apierr"
	"github.com/dmehra2102/inventory-hub/internal/inventory/application"
)

const ServiceName = "inventory.v1.StockService"

// StockReader is the slice of the inventory service the server needs.
type StockReader interface {
	Peek(ctx context.Context, productID string) (application.Snapshot, error)
}

type Server struct {
	log    *slog.Logger
	stock  StockReader
	tracer trace.Tracer
}

func NewServer(log *slog.Logger, stock StockReader) *Server {
	return &Server{log: log, stock: stock, tracer: otel.Tracer("inventory-grpc")}
}

func (s *Server) GetStock(ctx context.Context, req *GetStockRequest) (*GetStockResponse, error) {
	ctx, span := s.tracer.Start(ctx, "GetStock", trace.WithAttributes(attribute.String("product_id", req.ProductID)))
	defer span.End()

	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "productId is required")
	}
	snap, err := s.stock.Peek(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &GetStockResponse{
		ProductID: snap.ProductID,
		Quantity:  snap.Quantity,
		LowStock:  snap.LowStock,
		Location:  snap.Location,
		UpdatedAt: snap.UpdatedAt,
	}, nil
}

// CheckAvailability reports whether every item could be reserved right now.
// Repeated products are summed. The answer is advisory; nothing is held.
func (s *Server) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CheckAvailability", trace.WithAttributes(attribute.Int("items", len(req.Items))))
	defer span.End()

	if len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "items are required")
	}
	required := make(map[string]int, len(req.Items))
	order := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, status.Error(codes.InvalidArgument, "each item needs a productId and a positive quantity")
		}
		if _, ok := required[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		required[it.ProductID] += it.Quantity
	}

	resp := &CheckAvailabilityResponse{Available: true}
	for _, id := range order {
		snap, err := s.stock.Peek(ctx, id)
		if err != nil {
			return nil, s.toStatus(err)
		}
		if snap.Quantity < required[id] {
			resp.Available = false
			resp.Shortages = append(resp.Shortages, Shortage{ProductID: id, Available: snap.Quantity, Required: required[id]})
		}
	}
	return resp, nil
}

func (s *Server) toStatus(err error) error {
	code := apierr.GRPCCode(err)
	if code == codes.Internal {
		s.log.Error("grpc call failed", "err", err)
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// StockService is implemented by *Server.
type StockService interface {
	GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error)
	CheckAvailability(context.Context, *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StockService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStock", Handler: getStockHandler},
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
	},
	Metadata: "inventory/v1/stock.json",
}

func getStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockService).GetStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetStock"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(StockService).GetStock(ctx, req.(*GetStockRequest))
	})
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckAvailabilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockService).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CheckAvailability"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(StockService).CheckAvailability(ctx, req.(*CheckAvailabilityRequest))
	})
}

func Register(gs *grpc.Server, srv StockService) {
	gs.RegisterService(&serviceDesc, srv)
}

func logging(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
		return resp, err
	}
}

// NewGRPCServer builds a server with the stock and health services registered.
func NewGRPCServer(log *slog.Logger, srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logging(log)))
	Register(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// Run listens on addr and serves in the background.
func Run(addr string, gs *grpc.Server) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = gs.Serve(lis)
	}()
	return lis.Addr(), nil
}
