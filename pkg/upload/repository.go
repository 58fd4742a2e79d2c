package upload

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("upload session not found")

// Repository is the injected session store contract. Implementations own
// durability; the pipeline owns session semantics. Put replaces the whole
// session document keyed by its ID.
type Repository interface {
	Put(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	ListByWallet(ctx context.Context, wallet string) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}
