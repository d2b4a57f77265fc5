package service

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/domain"
	"counselflow.org/internal/model"
	"counselflow.org/internal/store"
)

var companyWhitelist = crud.Whitelist{
	Searchable: []string{"name", "email"},
	Sortable:   []string{"id", "name", "kind", "created_at"},
	Filterable: []string{"kind", "country_id", "sector_id", "parent_id"},
}

// CompanyCreate is the create request for companies.
type CompanyCreate struct {
	Name         string            `json:"name"`
	Kind         model.CompanyKind `json:"kind"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Website      string            `json:"website"`
	Address      string            `json:"address"`
	CountryID    *int64            `json:"country_id"`
	StateID      *int64            `json:"state_id"`
	CityID       *int64            `json:"city_id"`
	SectorID     *int64            `json:"sector_id"`
	ParentID     *int64            `json:"parent_id"`
	Shareholders model.JSONList    `json:"shareholders"`
	Directors    model.JSONList    `json:"directors"`
}

// Validate checks the request independent of database state.
func (r CompanyCreate) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	switch r.Kind {
	case model.CompanyClient, model.CompanyCounterparty, model.CompanyLawFirm, model.CompanyRegulator:
	default:
		return fmt.Errorf("%w: unknown company kind %q", domain.ErrInvalidInput, r.Kind)
	}
	return nil
}

// CompanyUpdate is the partial-update request; nil fields stay untouched.
type CompanyUpdate struct {
	Name         *string            `json:"name"`
	Kind         *model.CompanyKind `json:"kind"`
	Email        *string            `json:"email"`
	Phone        *string            `json:"phone"`
	Website      *string            `json:"website"`
	Address      *string            `json:"address"`
	CountryID    *int64             `json:"country_id"`
	StateID      *int64             `json:"state_id"`
	CityID       *int64             `json:"city_id"`
	SectorID     *int64             `json:"sector_id"`
	ParentID     *int64             `json:"parent_id"`
	Shareholders *model.JSONList    `json:"shareholders"`
	Directors    *model.JSONList    `json:"directors"`
}

func (r CompanyUpdate) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name cannot be emptied", domain.ErrInvalidInput)
	}
	if r.Kind != nil {
		switch *r.Kind {
		case model.CompanyClient, model.CompanyCounterparty, model.CompanyLawFirm, model.CompanyRegulator:
		default:
			return fmt.Errorf("%w: unknown company kind %q", domain.ErrInvalidInput, *r.Kind)
		}
	}
	return nil
}

// CompanyService manages companies and their subsidiary tree.
type CompanyService struct {
	db *bun.DB
}

func NewCompanyService(db *bun.DB) *CompanyService {
	return &CompanyService{db: db}
}

func (s *CompanyService) repo(idb bun.IDB) *crud.Repository[model.Company] {
	return crud.NewRepository[model.Company](idb, companyWhitelist)
}

// Create inserts a company in its own transaction.
func (s *CompanyService) Create(ctx context.Context, req CompanyCreate) (*model.Company, error) {
	return s.CreateTx(ctx, nil, req)
}

// CreateTx inserts a company inside the caller's transaction when tx is
// non-nil, maintaining the closure table alongside the row.
func (s *CompanyService) CreateTx(ctx context.Context, tx bun.IDB, req CompanyCreate) (*model.Company, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Company
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := s.checkReferences(ctx, idb, req.CountryID, req.StateID, req.CityID, req.SectorID, req.ParentID); err != nil {
			return err
		}
		now := time.Now().UTC()
		entity := &model.Company{
			Name:         req.Name,
			Kind:         req.Kind,
			Email:        req.Email,
			Phone:        req.Phone,
			Website:      req.Website,
			Address:      req.Address,
			CountryID:    req.CountryID,
			StateID:      req.StateID,
			CityID:       req.CityID,
			SectorID:     req.SectorID,
			ParentID:     req.ParentID,
			Shareholders: req.Shareholders,
			Directors:    req.Directors,
		}
		entity.CreatedAt = now
		entity.UpdatedAt = now
		if err := s.repo(idb).Insert(ctx, entity); err != nil {
			return err
		}
		if err := insertClosure(ctx, idb, "company_closure", entity.ID, entity.ParentID); err != nil {
			return err
		}
		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *CompanyService) checkReferences(ctx context.Context, idb bun.IDB, countryID, stateID, cityID, sectorID, parentID *int64) error {
	if countryID != nil {
		if err := crud.Exists[model.Country](ctx, idb, *countryID); err != nil {
			return err
		}
	}
	if stateID != nil {
		if err := crud.Exists[model.State](ctx, idb, *stateID); err != nil {
			return err
		}
	}
	if cityID != nil {
		if err := crud.Exists[model.City](ctx, idb, *cityID); err != nil {
			return err
		}
	}
	if sectorID != nil {
		if err := crud.Exists[model.Sector](ctx, idb, *sectorID); err != nil {
			return err
		}
	}
	if parentID != nil {
		if err := crud.Exists[model.Company](ctx, idb, *parentID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CompanyService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Company], error) {
	return s.repo(s.db).Find(ctx, q)
}

func (s *CompanyService) FindOne(ctx context.Context, id int64) (*model.Company, error) {
	return s.repo(s.db).FindByID(ctx, id)
}

// Update applies the non-nil request fields. Reparenting rewrites the
// closure table for the whole subtree.
func (s *CompanyService) Update(ctx context.Context, id int64, req CompanyUpdate) (*model.Company, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Company
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkReferences(ctx, idb, req.CountryID, req.StateID, req.CityID, req.SectorID, req.ParentID); err != nil {
			return err
		}

		reparent := req.ParentID != nil && (entity.ParentID == nil || *entity.ParentID != *req.ParentID)

		if req.Name != nil {
			entity.Name = *req.Name
		}
		if req.Kind != nil {
			entity.Kind = *req.Kind
		}
		if req.Email != nil {
			entity.Email = *req.Email
		}
		if req.Phone != nil {
			entity.Phone = *req.Phone
		}
		if req.Website != nil {
			entity.Website = *req.Website
		}
		if req.Address != nil {
			entity.Address = *req.Address
		}
		if req.CountryID != nil {
			entity.CountryID = req.CountryID
		}
		if req.StateID != nil {
			entity.StateID = req.StateID
		}
		if req.CityID != nil {
			entity.CityID = req.CityID
		}
		if req.SectorID != nil {
			entity.SectorID = req.SectorID
		}
		if req.ParentID != nil {
			entity.ParentID = req.ParentID
		}
		if req.Shareholders != nil {
			entity.Shareholders = *req.Shareholders
		}
		if req.Directors != nil {
			entity.Directors = *req.Directors
		}
		entity.Touch(time.Now())

		if err := repo.Update(ctx, entity); err != nil {
			return err
		}
		if reparent {
			if err := moveSubtree(ctx, idb, "company_closure", id, req.ParentID); err != nil {
				return err
			}
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CompanyService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *CompanyService) Restore(ctx context.Context, id int64) (*model.Company, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}

// Children lists direct subsidiaries of the given company.
func (s *CompanyService) Children(ctx context.Context, id int64) ([]*model.Company, error) {
	if err := crud.Exists[model.Company](ctx, s.db, id); err != nil {
		return nil, err
	}
	var items []*model.Company
	err := s.db.NewSelect().Model(&items).
		Join("JOIN company_closure AS cc ON cc.descendant_id = co.id").
		Where("cc.ancestor_id = ?", id).
		Where("cc.depth = 1").
		Order("co.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}
