package crud

import "context"

// Service is the minimal capability set the HTTP layer binds a resource to.
// T is the entity, C the create request, U the partial-update request. Any
// object implementing it can back a generated resource regardless of entity.
type Service[T, C, U any] interface {
	Create(ctx context.Context, req C) (*T, error)
	Find(ctx context.Context, q Query) (*Page[T], error)
	FindOne(ctx context.Context, id int64) (*T, error)
	Update(ctx context.Context, id int64, req U) (*T, error)
	Delete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (*T, error)
}
