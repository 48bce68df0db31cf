package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

// AuthorizationMetadata is the metadata key carrying the caller's token.
const AuthorizationMetadata = "authorization"

var _ LendingServiceServer = (*GRPCHandler)(nil)

type GRPCHandler struct {
	lending  *service.LendingService
	query    *service.QueryService
	resolver port.PrincipalResolver
	logger   *zap.Logger
}

func NewGRPCHandler(
	logger *zap.Logger,
	lending *service.LendingService,
	query *service.QueryService,
	resolver port.PrincipalResolver,
) *GRPCHandler {
	return &GRPCHandler{
		lending:  lending,
		query:    query,
		resolver: resolver,
		logger:   logger,
	}
}

func (h *GRPCHandler) Borrow(ctx context.Context, req *BorrowRequest) (*BorrowResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	cmd, err := req.command()
	if err != nil {
		return nil, grpcError(err)
	}

	lending, err := h.lending.Borrow(ctx, p, cmd)
	if err != nil {
		return nil, h.fail("Borrow", err)
	}
	return &BorrowResponse{Message: msgBorrowed, LendingID: lending.ID}, nil
}

func (h *GRPCHandler) UpdateLending(ctx context.Context, req *UpdateLendingRequest) (*MessageResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	cmd, err := req.command()
	if err != nil {
		return nil, grpcError(err)
	}

	if err := h.lending.UpdateLending(ctx, p, cmd); err != nil {
		return nil, h.fail("UpdateLending", err)
	}
	return &MessageResponse{Message: msgUpdated}, nil
}

func (h *GRPCHandler) ListLendings(ctx context.Context, req *ListLendingsRequest) (*ListLendingsResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	rows, err := h.query.ListByUser(ctx, p, req.UserID)
	if err != nil {
		return nil, h.fail("ListLendings", err)
	}
	resp := listResponse(rows)
	return &resp, nil
}

func (h *GRPCHandler) principal(ctx context.Context) (*domain.Principal, error) {
	var credential string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(AuthorizationMetadata); len(values) > 0 {
			credential = strings.TrimSpace(values[0])
		}
	}
	return h.resolver.Resolve(ctx, credential)
}

func (h *GRPCHandler) fail(method string, err error) error {
	st := grpcError(err)
	if status.Code(st) == codes.Internal {
		h.logger.Error("rpc failed", zap.String("method", method), zap.Error(err))
	}
	return st
}
