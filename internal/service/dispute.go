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

var disputeWhitelist = crud.Whitelist{
	Searchable: []string{"title", "description"},
	Sortable:   []string{"id", "title", "status", "amount_claimed", "created_at"},
	Filterable: []string{"matter_id", "company_id", "status", "stage"},
}

// DisputePartyCreate names one participant on a new dispute.
type DisputePartyCreate struct {
	CompanyID *int64 `json:"company_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// DisputeClaimCreate is one head of claim on a new dispute.
type DisputeClaimCreate struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// DisputeCreate is the create request; the dispute, its parties and its
// claims land in one unit of work.
type DisputeCreate struct {
	MatterID      int64                `json:"matter_id"`
	CompanyID     int64                `json:"company_id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	AmountClaimed int64                `json:"amount_claimed"`
	Currency      string               `json:"currency"`
	KeyDates      model.JSONMap        `json:"key_dates"`
	Parties       []DisputePartyCreate `json:"parties"`
	Claims        []DisputeClaimCreate `json:"claims"`
}

func (r DisputeCreate) Validate() error {
	if r.MatterID == 0 {
		return fmt.Errorf("%w: matter_id is required", domain.ErrInvalidInput)
	}
	if r.CompanyID == 0 {
		return fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if r.Status == "" {
		return fmt.Errorf("%w: status is required", domain.ErrInvalidInput)
	}
	for i, p := range r.Parties {
		if p.Name == "" || p.Role == "" {
			return fmt.Errorf("%w: party %d needs a name and a role", domain.ErrInvalidInput, i)
		}
	}
	for i, c := range r.Claims {
		if c.Description == "" {
			return fmt.Errorf("%w: claim %d needs a description", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// DisputeUpdate is the partial-update request for the dispute head record;
// parties and claims are immutable once filed.
type DisputeUpdate struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	Status        *string        `json:"status"`
	Stage         *string        `json:"stage"`
	AmountClaimed *int64         `json:"amount_claimed"`
	Currency      *string        `json:"currency"`
	KeyDates      *model.JSONMap `json:"key_dates"`
}

func (r DisputeUpdate) Validate() error {
	if r.Title != nil && *r.Title == "" {
		return fmt.Errorf("%w: title cannot be emptied", domain.ErrInvalidInput)
	}
	return nil
}

// DisputeService manages disputes with their parties and claims.
type DisputeService struct {
	db *bun.DB
}

func NewDisputeService(db *bun.DB) *DisputeService {
	return &DisputeService{db: db}
}

func (s *DisputeService) repo(idb bun.IDB) *crud.Repository[model.Dispute] {
	return crud.NewRepository[model.Dispute](idb, disputeWhitelist)
}

func (s *DisputeService) Create(ctx context.Context, req DisputeCreate) (*model.Dispute, error) {
	return s.CreateTx(ctx, nil, req)
}

func (s *DisputeService) CreateTx(ctx context.Context, tx bun.IDB, req DisputeCreate) (*model.Dispute, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Dispute
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Matter](ctx, idb, req.MatterID); err != nil {
			return err
		}
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}
		for _, p := range req.Parties {
			if p.CompanyID != nil {
				if err := crud.Exists[model.Company](ctx, idb, *p.CompanyID); err != nil {
					return err
				}
			}
		}
		now := time.Now().UTC()
		entity := &model.Dispute{
			MatterID:      req.MatterID,
			CompanyID:     req.CompanyID,
			Title:         req.Title,
			Description:   req.Description,
			Status:        req.Status,
			Stage:         req.Stage,
			AmountClaimed: req.AmountClaimed,
			Currency:      req.Currency,
			KeyDates:      req.KeyDates,
		}
		entity.CreatedAt = now
		entity.UpdatedAt = now
		if err := s.repo(idb).Insert(ctx, entity); err != nil {
			return err
		}
		for _, p := range req.Parties {
			party := &model.DisputeParty{
				DisputeID: entity.ID,
				CompanyID: p.CompanyID,
				Name:      p.Name,
				Role:      p.Role,
			}
			if _, err := idb.NewInsert().Model(party).Exec(ctx); err != nil {
				return err
			}
			entity.Parties = append(entity.Parties, party)
		}
		for _, c := range req.Claims {
			claim := &model.DisputeClaim{
				DisputeID:   entity.ID,
				Description: c.Description,
				Amount:      c.Amount,
			}
			if _, err := idb.NewInsert().Model(claim).Exec(ctx); err != nil {
				return err
			}
			entity.Claims = append(entity.Claims, claim)
		}
		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *DisputeService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Dispute], error) {
	page, err := s.repo(s.db).Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, page.Items...); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *DisputeService) FindOne(ctx context.Context, id int64) (*model.Dispute, error) {
	entity, err := s.repo(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *DisputeService) loadRelations(ctx context.Context, disputes ...*model.Dispute) error {
	if len(disputes) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(disputes))
	byID := make(map[int64]*model.Dispute, len(disputes))
	for _, d := range disputes {
		ids = append(ids, d.ID)
		byID[d.ID] = d
		d.Parties = nil
		d.Claims = nil
	}
	var parties []*model.DisputeParty
	if err := s.db.NewSelect().Model(&parties).
		Where("dispute_id IN (?)", bun.In(ids)).Order("id ASC").Scan(ctx); err != nil {
		return err
	}
	for _, p := range parties {
		d := byID[p.DisputeID]
		d.Parties = append(d.Parties, p)
	}
	var claims []*model.DisputeClaim
	if err := s.db.NewSelect().Model(&claims).
		Where("dispute_id IN (?)", bun.In(ids)).Order("id ASC").Scan(ctx); err != nil {
		return err
	}
	for _, c := range claims {
		d := byID[c.DisputeID]
		d.Claims = append(d.Claims, c)
	}
	return nil
}

func (s *DisputeService) Update(ctx context.Context, id int64, req DisputeUpdate) (*model.Dispute, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Dispute
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Title != nil {
			entity.Title = *req.Title
		}
		if req.Description != nil {
			entity.Description = *req.Description
		}
		if req.Status != nil {
			entity.Status = *req.Status
		}
		if req.Stage != nil {
			entity.Stage = *req.Stage
		}
		if req.AmountClaimed != nil {
			entity.AmountClaimed = *req.AmountClaimed
		}
		if req.Currency != nil {
			entity.Currency = *req.Currency
		}
		if req.KeyDates != nil {
			entity.KeyDates = *req.KeyDates
		}
		entity.Touch(time.Now())
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DisputeService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *DisputeService) Restore(ctx context.Context, id int64) (*model.Dispute, error) {
	entity, err := s.repo(s.db).Restore(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}
