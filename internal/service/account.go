package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/domain"
	"counselflow.org/internal/model"
	"counselflow.org/internal/store"
)

var accountWhitelist = crud.Whitelist{
	Sortable:   []string{"id", "created_at"},
	Filterable: []string{"company_id", "is_admin"},
}

// AccountCreate is the create request for accounts.
type AccountCreate struct {
	CompanyID        int64  `json:"company_id"`
	OrganizationSize string `json:"organization_size"`
	IsAdmin          bool   `json:"is_admin"`
}

func (r AccountCreate) Validate() error {
	if r.CompanyID == 0 {
		return fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	return nil
}

// AccountUpdate is the partial-update request; nil fields stay untouched.
type AccountUpdate struct {
	OrganizationSize *string `json:"organization_size"`
	IsAdmin          *bool   `json:"is_admin"`
}

func (r AccountUpdate) Validate() error { return nil }

// AccountService manages tenancy accounts. At most one account platform-wide
// may carry the admin flag.
type AccountService struct {
	db *bun.DB
}

func NewAccountService(db *bun.DB) *AccountService {
	return &AccountService{db: db}
}

func (s *AccountService) repo(idb bun.IDB) *crud.Repository[model.Account] {
	return crud.NewRepository[model.Account](idb, accountWhitelist)
}

func (s *AccountService) Create(ctx context.Context, req AccountCreate) (*model.Account, error) {
	return s.CreateTx(ctx, nil, req)
}

func (s *AccountService) CreateTx(ctx context.Context, tx bun.IDB, req AccountCreate) (*model.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Account
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}
		if req.IsAdmin {
			if err := s.ensureNoAdmin(ctx, idb); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		entity := &model.Account{
			CompanyID:        req.CompanyID,
			OrganizationSize: req.OrganizationSize,
			IsAdmin:          req.IsAdmin,
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

func (s *AccountService) ensureNoAdmin(ctx context.Context, idb bun.IDB) error {
	exists, err := idb.NewSelect().Model((*model.Account)(nil)).Where("is_admin = ?", true).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: an admin account already exists", domain.ErrConflict)
	}
	return nil
}

// AdminAccount returns the admin account, or ErrNotFound when none exists.
func (s *AccountService) AdminAccount(ctx context.Context) (*model.Account, error) {
	entity := new(model.Account)
	err := s.db.NewSelect().Model(entity).Where("is_admin = ?", true).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return entity, nil
}

// BootstrapAdminByEmail promotes the account owning the user with the given
// email to admin, unless an admin already exists. Called once at startup
// when the operator configures a bootstrap email.
func (s *AccountService) BootstrapAdminByEmail(ctx context.Context, email string) (*model.Account, error) {
	if acc, err := s.AdminAccount(ctx); err == nil {
		return acc, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user := new(model.User)
	err := s.db.NewSelect().Model(user).Where("email = ?", email).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no user with email %s", domain.ErrNotFound, email)
		}
		return nil, err
	}
	isAdmin := true
	return s.Update(ctx, user.AccountID, AccountUpdate{IsAdmin: &isAdmin})
}

// EnsureAdminAccount returns the existing admin account or creates one owned
// by companyID. Safe to call on every startup.
func (s *AccountService) EnsureAdminAccount(ctx context.Context, companyID int64) (*model.Account, error) {
	if acc, err := s.AdminAccount(ctx); err == nil {
		return acc, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, AccountCreate{CompanyID: companyID, IsAdmin: true})
}

func (s *AccountService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Account], error) {
	return s.repo(s.db).Find(ctx, q)
}

func (s *AccountService) FindOne(ctx context.Context, id int64) (*model.Account, error) {
	return s.repo(s.db).FindByID(ctx, id)
}

func (s *AccountService) Update(ctx context.Context, id int64, req AccountUpdate) (*model.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Account
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if req.IsAdmin != nil && *req.IsAdmin && !entity.IsAdmin {
			if err := s.ensureNoAdmin(ctx, idb); err != nil {
				return err
			}
		}
		if req.OrganizationSize != nil {
			entity.OrganizationSize = *req.OrganizationSize
		}
		if req.IsAdmin != nil {
			entity.IsAdmin = *req.IsAdmin
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

func (s *AccountService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *AccountService) Restore(ctx context.Context, id int64) (*model.Account, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}
