package service

import "github.com/rl1809/library-lending/internal/core/domain"

// Authorize rejects a missing principal and principals ranked below required.
func Authorize(p *domain.Principal, required domain.PrivilegeLevel) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	if p.Level < required {
		return domain.ErrForbidden
	}
	return nil
}

// Authenticated only checks that a principal was resolved.
func Authenticated(p *domain.Principal) error {
	if p == nil {
		return domain.ErrUnauthenticated
	}
	return nil
}
