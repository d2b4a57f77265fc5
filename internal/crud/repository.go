package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"counselflow.org/internal/domain"
)

// Repository is a generic data access layer over a bun handle. It works
// identically over *bun.DB and bun.Tx, so callers inside a transaction build
// one over the transaction handle.
type Repository[T any] struct {
	idb bun.IDB
	wl  Whitelist
}

// NewRepository returns a repository for T bound to the provided handle.
func NewRepository[T any](idb bun.IDB, wl Whitelist) *Repository[T] {
	return &Repository[T]{idb: idb, wl: wl}
}

// Insert persists a new entity, translating unique violations into conflicts.
func (r *Repository[T]) Insert(ctx context.Context, entity *T) error {
	if _, err := r.idb.NewInsert().Model(entity).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate value for unique column", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// FindByID returns a live entity or a not-found error covering both absent
// and soft-deleted rows.
func (r *Repository[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	entity := new(T)
	err := r.idb.NewSelect().Model(entity).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.EntityNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// FindByIDAny returns the entity regardless of its soft-delete state.
func (r *Repository[T]) FindByIDAny(ctx context.Context, id int64) (*T, error) {
	entity := new(T)
	err := r.idb.NewSelect().Model(entity).Where("id = ?", id).WhereAllWithDeleted().Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.EntityNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// Find runs the whitelisted paginated query.
func (r *Repository[T]) Find(ctx context.Context, q Query) (*Page[T], error) {
	var items []*T
	sel := r.idb.NewSelect().Model(&items)

	for col, value := range q.Filters {
		if !r.wl.filterable(col) {
			return nil, fmt.Errorf("%w: cannot filter by %s", domain.ErrInvalidInput, col)
		}
		clause, arg, err := filterClause(col, value)
		if err != nil {
			return nil, err
		}
		sel = sel.Where(clause, arg)
	}

	if term := strings.TrimSpace(q.Search); term != "" && len(r.wl.Searchable) > 0 {
		pattern := "%" + strings.ToLower(term) + "%"
		cols := r.wl.Searchable
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range cols {
				sq = sq.WhereOr("lower("+col+") LIKE ?", pattern)
			}
			return sq
		})
	}

	page := &Page[T]{Items: make([]*T, 0), Page: q.page(), PageSize: q.pageSize()}
	total, err := sel.Count(ctx)
	if err != nil {
		return nil, err
	}
	page.Total = total
	if total == 0 {
		return page, nil
	}

	order := "id ASC"
	if q.Sort != "" {
		if !r.wl.sortable(q.Sort) {
			return nil, fmt.Errorf("%w: cannot sort by %s", domain.ErrInvalidInput, q.Sort)
		}
		order = q.Sort + " ASC"
		if q.SortDesc {
			order = q.Sort + " DESC"
		}
	}

	if err := sel.Order(order).Offset(q.offset()).Limit(q.pageSize()).Scan(ctx); err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

// Update rewrites the loaded entity row. Callers load first and mutate only
// the fields present in the request, which keeps partial updates lossless.
func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	res, err := r.idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate value for unique column", domain.ErrConflict)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at on a live row.
func (r *Repository[T]) SoftDelete(ctx context.Context, id int64) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	_, err := r.idb.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// Restore clears deleted_at and returns the revived entity.
func (r *Repository[T]) Restore(ctx context.Context, id int64, now time.Time) (*T, error) {
	if _, err := r.FindByIDAny(ctx, id); err != nil {
		return nil, err
	}
	_, err := r.idb.NewUpdate().Model((*T)(nil)).
		Set("deleted_at = NULL").
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		WhereAllWithDeleted().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// HardDelete physically removes the row; irreversible.
func (r *Repository[T]) HardDelete(ctx context.Context, id int64) error {
	res, err := r.idb.NewDelete().Model((*T)(nil)).Where("id = ?", id).ForceDelete().Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.EntityNotFound(id)
	}
	return nil
}

// Exists is the lookup-or-throw guard used before writing foreign keys.
func Exists[T any](ctx context.Context, idb bun.IDB, id int64) error {
	ok, err := idb.NewSelect().Model((*T)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.EntityNotFound(id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite (tests) reports unique violations by message only
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
