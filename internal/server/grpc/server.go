package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

type Purchaser interface {
	Purchase(ctx context.Context, userID, leadID, fieldGroup string) (*models.PurchaseResult, error)
}

type LeadReader interface {
	Get(ctx context.Context, userID, leadID string) (*models.ProjectedLead, error)
}

type BalanceReader interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type GRPCServer struct {
	address   string
	purchases Purchaser
	leads     LeadReader
	ledger    BalanceReader
	logger    logging.Logger
	jwtSecret []byte
}

var _ LedgerServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, p Purchaser, lr LeadReader, b BalanceReader, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		purchases: p,
		leads:     lr,
		ledger:    b,
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds the grpc.Server with the auth interceptor and the
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv.RegisterService(&LedgerServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
