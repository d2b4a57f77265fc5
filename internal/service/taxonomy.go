package service

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/domain"
	"counselflow.org/internal/model"
)

// Sectors and categories are flat name lookups managed by admins. Their
// services share the request shapes below.

var taxonomyWhitelist = crud.Whitelist{
	Searchable: []string{"name"},
	Sortable:   []string{"id", "name", "created_at"},
	Filterable: []string{"name"},
}

// NameCreate is the create request for name-only lookups.
type NameCreate struct {
	Name string `json:"name"`
}

func (r NameCreate) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return nil
}

// NameUpdate renames a lookup entry; nil leaves it untouched.
type NameUpdate struct {
	Name *string `json:"name"`
}

func (r NameUpdate) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name cannot be emptied", domain.ErrInvalidInput)
	}
	return nil
}

// SectorService manages the industry sector lookup.
type SectorService struct {
	db *bun.DB
}

func NewSectorService(db *bun.DB) *SectorService {
	return &SectorService{db: db}
}

func (s *SectorService) repo() *crud.Repository[model.Sector] {
	return crud.NewRepository[model.Sector](s.db, taxonomyWhitelist)
}

func (s *SectorService) Create(ctx context.Context, req NameCreate) (*model.Sector, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	entity := &model.Sector{Name: req.Name}
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if err := s.repo().Insert(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *SectorService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Sector], error) {
	return s.repo().Find(ctx, q)
}

func (s *SectorService) FindOne(ctx context.Context, id int64) (*model.Sector, error) {
	return s.repo().FindByID(ctx, id)
}

func (s *SectorService) Update(ctx context.Context, id int64, req NameUpdate) (*model.Sector, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	entity, err := s.repo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		entity.Name = *req.Name
	}
	entity.Touch(time.Now())
	if err := s.repo().Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *SectorService) Delete(ctx context.Context, id int64) error {
	return s.repo().SoftDelete(ctx, id)
}

func (s *SectorService) Restore(ctx context.Context, id int64) (*model.Sector, error) {
	return s.repo().Restore(ctx, id, time.Now())
}

// CategoryService manages the matter practice-area lookup.
type CategoryService struct {
	db *bun.DB
}

func NewCategoryService(db *bun.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) repo() *crud.Repository[model.Category] {
	return crud.NewRepository[model.Category](s.db, taxonomyWhitelist)
}

func (s *CategoryService) Create(ctx context.Context, req NameCreate) (*model.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	entity := &model.Category{Name: req.Name}
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if err := s.repo().Insert(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *CategoryService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Category], error) {
	return s.repo().Find(ctx, q)
}

func (s *CategoryService) FindOne(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo().FindByID(ctx, id)
}

func (s *CategoryService) Update(ctx context.Context, id int64, req NameUpdate) (*model.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	entity, err := s.repo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		entity.Name = *req.Name
	}
	entity.Touch(time.Now())
	if err := s.repo().Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	return s.repo().SoftDelete(ctx, id)
}

func (s *CategoryService) Restore(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo().Restore(ctx, id, time.Now())
}
