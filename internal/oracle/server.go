package oracle

import (
	"context"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/api/inventoryv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Server публикует StockBook как inventory.v1.InventoryOracle.
type Server struct {
	inventoryv1.UnimplementedInventoryOracleServer

	book   *StockBook
	logger *log.Entry
}

// NewServer создаёт gRPC-обработчик склада.
func NewServer(book *StockBook, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "inventory-oracle")
	}
	return &Server{book: book, logger: logger}
}

func (s *Server) CheckQuantity(ctx context.Context, req *inventoryv1.CheckQuantityRequest) (*inventoryv1.CheckQuantityResponse, error) {
	if req.GetProductID() == "" {
		return nil, status.Error(codes.InvalidArgument, domain.ErrProductRequired.Error())
	}
	qty, err := s.book.CheckQuantity(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryv1.CheckQuantityResponse{ProductID: req.ProductID, AvailableQuantity: qty}, nil
}

func (s *Server) CheckPrice(ctx context.Context, req *inventoryv1.CheckPriceRequest) (*inventoryv1.CheckPriceResponse, error) {
	if req.GetProductID() == "" {
		return nil, status.Error(codes.InvalidArgument, domain.ErrProductRequired.Error())
	}
	price, err := s.book.CheckPrice(ctx, req.ProductID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryv1.CheckPriceResponse{ProductID: req.ProductID, UnitPrice: price.String()}, nil
}

func (s *Server) ReserveQuantity(ctx context.Context, req *inventoryv1.ReserveQuantityRequest) (*inventoryv1.ReserveQuantityResponse, error) {
	if req.GetProductID() == "" {
		return nil, status.Error(codes.InvalidArgument, domain.ErrProductRequired.Error())
	}
	remaining, err := s.book.Reserve(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryv1.ReserveQuantityResponse{ProductID: req.ProductID, Remaining: remaining}, nil
}

func (s *Server) ReleaseQuantity(ctx context.Context, req *inventoryv1.ReleaseQuantityRequest) (*inventoryv1.ReleaseQuantityResponse, error) {
	if req.GetProductID() == "" {
		return nil, status.Error(codes.InvalidArgument, domain.ErrProductRequired.Error())
	}
	remaining, err := s.book.Release(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &inventoryv1.ReleaseQuantityResponse{ProductID: req.ProductID, Remaining: remaining}, nil
}

func (s *Server) toStatus(err error) error {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		st, detailErr := status.New(codes.FailedPrecondition, err.Error()).WithDetails(&errdetails.ErrorInfo{
			Reason: inventoryv1.ReasonInsufficientStock,
			Domain: inventoryv1.ErrorDomain,
			Metadata: map[string]string{
				inventoryv1.MetadataProductID: stockErr.ProductID,
				inventoryv1.MetadataRequested: strconv.FormatInt(int64(stockErr.Requested), 10),
				inventoryv1.MetadataAvailable: strconv.FormatInt(int64(stockErr.Available), 10),
			},
		})
		if detailErr != nil {
			s.logger.WithError(detailErr).Warn("Failed to attach error details")
			return status.Error(codes.FailedPrecondition, err.Error())
		}
		return st.Err()
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrItemQtyInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, domain.ErrOracleUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.logger.WithError(err).Error("Inventory oracle internal error")
		return status.Error(codes.Internal, err.Error())
	}
}

var _ inventoryv1.InventoryOracleServer = (*Server)(nil)
