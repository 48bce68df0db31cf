package port

import "context"

type IdempotencyRepository interface {
	// Acquire claims key and returns an owner token, ok is false if the key is already held
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)

	// Release frees key if it is still held by token
	Release(ctx context.Context, key, token string) error
}
