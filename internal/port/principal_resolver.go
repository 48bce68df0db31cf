package port

import (
	"context"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type PrincipalResolver interface {
	// Resolve turns a raw credential into a principal, failing with
	// domain.ErrUnauthenticated or domain.ErrTokenExpired
	Resolve(ctx context.Context, credential string) (*domain.Principal, error)
}
