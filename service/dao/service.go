package dao

import (
	"context"
)

// Service abstracts persistence of a single entity type. Backends differ only
// in how they load and save a record; all lifecycle logic stays with the
// caller so that memory and durable implementations behave identically.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
