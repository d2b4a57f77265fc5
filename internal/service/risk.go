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

var riskWhitelist = crud.Whitelist{
	Searchable: []string{"name", "mitigation"},
	Sortable:   []string{"id", "name", "severity", "financial_impact", "created_at"},
	Filterable: []string{"matter_id", "company_id", "severity", "status", "category"},
}

// RiskCreate is the create request for risks.
type RiskCreate struct {
	MatterID         int64              `json:"matter_id"`
	CompanyID        int64              `json:"company_id"`
	Name             string             `json:"name"`
	Category         string             `json:"category"`
	Severity         model.RiskSeverity `json:"severity"`
	Likelihood       string             `json:"likelihood"`
	FinancialImpact  int64              `json:"financial_impact"`
	Mitigation       string             `json:"mitigation"`
	Status           string             `json:"status"`
	ReminderSettings model.JSONMap      `json:"reminder_settings"`
	Attachments      model.JSONList     `json:"attachments"`
}

func (r RiskCreate) Validate() error {
	if r.MatterID == 0 {
		return fmt.Errorf("%w: matter_id is required", domain.ErrInvalidInput)
	}
	if r.CompanyID == 0 {
		return fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if r.Status == "" {
		return fmt.Errorf("%w: status is required", domain.ErrInvalidInput)
	}
	return validRiskSeverity(r.Severity)
}

// RiskUpdate is the partial-update request; nil fields stay untouched.
type RiskUpdate struct {
	Name             *string             `json:"name"`
	Category         *string             `json:"category"`
	Severity         *model.RiskSeverity `json:"severity"`
	Likelihood       *string             `json:"likelihood"`
	FinancialImpact  *int64              `json:"financial_impact"`
	Mitigation       *string             `json:"mitigation"`
	Status           *string             `json:"status"`
	ReminderSettings *model.JSONMap      `json:"reminder_settings"`
	Attachments      *model.JSONList     `json:"attachments"`
}

func (r RiskUpdate) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name cannot be emptied", domain.ErrInvalidInput)
	}
	if r.Severity != nil {
		return validRiskSeverity(*r.Severity)
	}
	return nil
}

func validRiskSeverity(s model.RiskSeverity) error {
	switch s {
	case model.RiskLow, model.RiskMedium, model.RiskHigh, model.RiskCritical:
		return nil
	default:
		return fmt.Errorf("%w: unknown risk severity %q", domain.ErrInvalidInput, s)
	}
}

// RiskService manages risks attached to matters.
type RiskService struct {
	db *bun.DB
}

func NewRiskService(db *bun.DB) *RiskService {
	return &RiskService{db: db}
}

func (s *RiskService) repo(idb bun.IDB) *crud.Repository[model.Risk] {
	return crud.NewRepository[model.Risk](idb, riskWhitelist)
}

func (s *RiskService) Create(ctx context.Context, req RiskCreate) (*model.Risk, error) {
	return s.CreateTx(ctx, nil, req)
}

func (s *RiskService) CreateTx(ctx context.Context, tx bun.IDB, req RiskCreate) (*model.Risk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Risk
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Matter](ctx, idb, req.MatterID); err != nil {
			return err
		}
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}
		now := time.Now().UTC()
		entity := &model.Risk{
			MatterID:         req.MatterID,
			CompanyID:        req.CompanyID,
			Name:             req.Name,
			Category:         req.Category,
			Severity:         req.Severity,
			Likelihood:       req.Likelihood,
			FinancialImpact:  req.FinancialImpact,
			Mitigation:       req.Mitigation,
			Status:           req.Status,
			ReminderSettings: req.ReminderSettings,
			Attachments:      req.Attachments,
		}
		entity.CreatedAt = now
		entity.UpdatedAt = now
		if err := s.repo(idb).Insert(ctx, entity); err != nil {
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

func (s *RiskService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Risk], error) {
	return s.repo(s.db).Find(ctx, q)
}

func (s *RiskService) FindOne(ctx context.Context, id int64) (*model.Risk, error) {
	return s.repo(s.db).FindByID(ctx, id)
}

func (s *RiskService) Update(ctx context.Context, id int64, req RiskUpdate) (*model.Risk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Risk
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			entity.Name = *req.Name
		}
		if req.Category != nil {
			entity.Category = *req.Category
		}
		if req.Severity != nil {
			entity.Severity = *req.Severity
		}
		if req.Likelihood != nil {
			entity.Likelihood = *req.Likelihood
		}
		if req.FinancialImpact != nil {
			entity.FinancialImpact = *req.FinancialImpact
		}
		if req.Mitigation != nil {
			entity.Mitigation = *req.Mitigation
		}
		if req.Status != nil {
			entity.Status = *req.Status
		}
		if req.ReminderSettings != nil {
			entity.ReminderSettings = *req.ReminderSettings
		}
		if req.Attachments != nil {
			entity.Attachments = *req.Attachments
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
	return updated, nil
}

func (s *RiskService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *RiskService) Restore(ctx context.Context, id int64) (*model.Risk, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}
