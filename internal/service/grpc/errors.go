package grpcsvc

import (
	"context"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var invalidArgumentErrors = []error{
	domain.ErrUserRequired,
	domain.ErrProductRequired,
	domain.ErrItemsRequired,
	domain.ErrItemQtyInvalid,
	domain.ErrDuplicateOrderItem,
	domain.ErrOrderIDRequired,
	domain.ErrUnknownOrderStatus,
}

var notFoundErrors = []error{
	domain.ErrCartNotFound,
	domain.ErrOrderNotFound,
	domain.ErrProductNotFound,
}

// toStatus переводит доменную ошибку в gRPC status. Неизвестные ошибки логируются
// и скрываются за общим сообщением.
func toStatus(logger *log.Entry, operation string, err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &stockErr):
		return insufficientStockStatus(stockErr)
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case isAny(err, notFoundErrors):
		return status.Error(codes.NotFound, err.Error())
	case isAny(err, invalidArgumentErrors):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrIllegalStatusTransition), errors.Is(err, domain.ErrItemPriceInvalid):
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.IsVersionConflict(err):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrOrderAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrOracleTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrOracleUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		logger.WithError(err).WithField("operation", operation).Error("unexpected error")
		return status.Error(codes.Internal, "internal error")
	}
}

func insufficientStockStatus(stockErr *domain.InsufficientStockError) error {
	st := status.New(codes.FailedPrecondition, stockErr.Error())
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: storefrontv1.ReasonInsufficientStock,
		Domain: storefrontv1.ErrorDomain,
		Metadata: map[string]string{
			storefrontv1.MetadataProductID: stockErr.ProductID,
			storefrontv1.MetadataRequested: strconv.FormatInt(int64(stockErr.Requested), 10),
			storefrontv1.MetadataAvailable: strconv.FormatInt(int64(stockErr.Available), 10),
		},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
