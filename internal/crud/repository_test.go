package crud

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"counselflow.org/internal/domain"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Code      string    `bun:"code,unique,nullzero"`
	Weight    int64     `bun:"weight,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

var widgetWL = Whitelist{
	Searchable: []string{"name"},
	Sortable:   []string{"id", "name", "weight"},
	Filterable: []string{"weight", "code"},
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.NewCreateTable().Model((*widget)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func seedWidget(t *testing.T, repo *Repository[widget], name, code string, weight int64) *widget {
	t.Helper()
	now := time.Now().UTC()
	w := &widget{Name: name, Code: code, Weight: weight, CreatedAt: now, UpdatedAt: now}
	if err := repo.Insert(context.Background(), w); err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
	return w
}

func TestFindByIDNotFoundMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)

	_, err := repo.FindByID(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Entity with ID 999 not found") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestInsertUniqueViolationIsConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)

	seedWidget(t, repo, "first", "X1", 10)
	now := time.Now().UTC()
	dup := &widget{Name: "second", Code: "X1", CreatedAt: now, UpdatedAt: now}
	err := repo.Insert(context.Background(), dup)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	w := seedWidget(t, repo, "ephemeral", "E1", 5)

	if err := repo.SoftDelete(ctx, w.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}
	if _, err := repo.FindByIDAny(ctx, w.ID); err != nil {
		t.Fatalf("FindByIDAny should see soft-deleted rows: %v", err)
	}
	// Deleting again reports not found: the live row is gone.
	if err := repo.SoftDelete(ctx, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on double delete, got %v", err)
	}

	restored, err := repo.Restore(ctx, w.ID, time.Now())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID != w.ID || restored.Name != "ephemeral" {
		t.Fatalf("restore returned wrong entity: %+v", restored)
	}
	if _, err := repo.FindByID(ctx, w.ID); err != nil {
		t.Fatalf("expected entity visible after restore: %v", err)
	}
}

func TestHardDeleteRemovesRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	w := seedWidget(t, repo, "doomed", "D1", 1)
	if err := repo.SoftDelete(ctx, w.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := repo.HardDelete(ctx, w.ID); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, err := repo.FindByIDAny(ctx, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected row gone after hard delete, got %v", err)
	}
	if err := repo.HardDelete(ctx, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on repeated hard delete, got %v", err)
	}
}

func TestFindPaginationAndSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	seedWidget(t, repo, "alpha gear", "A1", 10)
	seedWidget(t, repo, "beta gear", "B1", 20)
	seedWidget(t, repo, "gamma cog", "C1", 30)

	page, err := repo.Find(ctx, Query{Page: 1, PageSize: 2, Search: "gear"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected total 2, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	page, err = repo.Find(ctx, Query{Filters: map[string]string{"weight": "gte:20"}})
	if err != nil {
		t.Fatalf("find filtered: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected total 2 with weight >= 20, got %d", page.Total)
	}

	page, err = repo.Find(ctx, Query{Sort: "weight", SortDesc: true, PageSize: 1})
	if err != nil {
		t.Fatalf("find sorted: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Weight != 30 {
		t.Fatalf("expected heaviest first, got %+v", page.Items)
	}
}

func TestFindRejectsNonWhitelistedColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	if _, err := repo.Find(ctx, Query{Filters: map[string]string{"name": "x"}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for non-filterable column, got %v", err)
	}
	if _, err := repo.Find(ctx, Query{Sort: "code"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for non-sortable column, got %v", err)
	}
}

func TestUpdateFullRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	w := seedWidget(t, repo, "orig", "U1", 7)
	w.Name = "renamed"
	w.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.FindByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "renamed" || got.Weight != 7 {
		t.Fatalf("update lost data: %+v", got)
	}
}

func TestExistsGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository[widget](db, widgetWL)
	ctx := context.Background()

	w := seedWidget(t, repo, "present", "P1", 1)
	if err := Exists[widget](ctx, db, w.ID); err != nil {
		t.Fatalf("exists: %v", err)
	}
	if err := Exists[widget](ctx, db, 12345); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
