package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/domain"
	"counselflow.org/internal/idp"
	"counselflow.org/internal/model"
	"counselflow.org/internal/obs"
	"counselflow.org/internal/store"
)

var userWhitelist = crud.Whitelist{
	Searchable: []string{"email", "first_name", "last_name"},
	Sortable:   []string{"id", "email", "last_name", "created_at"},
	Filterable: []string{"account_id", "company_id", "role"},
}

// UserCreate is the create request for users. Password is forwarded to the
// identity provider and never stored locally.
type UserCreate struct {
	AccountID  int64          `json:"account_id"`
	CompanyID  int64          `json:"company_id"`
	Email      string         `json:"email"`
	Password   string         `json:"password"`
	FirstName  string         `json:"first_name"`
	MiddleName string         `json:"middle_name"`
	LastName   string         `json:"last_name"`
	Title      string         `json:"title"`
	Phone      string         `json:"phone"`
	Role       model.UserRole `json:"role"`
}

func (r UserCreate) Validate() error {
	if r.AccountID == 0 {
		return fmt.Errorf("%w: account_id is required", domain.ErrInvalidInput)
	}
	if r.CompanyID == 0 {
		return fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	switch r.Role {
	case model.RoleAdmin, model.RoleLegal, model.RoleBusiness:
	default:
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, r.Role)
	}
	return nil
}

// UserUpdate is the partial-update request; nil fields stay untouched.
type UserUpdate struct {
	Email      *string         `json:"email"`
	FirstName  *string         `json:"first_name"`
	MiddleName *string         `json:"middle_name"`
	LastName   *string         `json:"last_name"`
	Title      *string         `json:"title"`
	Phone      *string         `json:"phone"`
	Role       *model.UserRole `json:"role"`
}

func (r UserUpdate) Validate() error {
	if r.Email != nil && !strings.Contains(*r.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if r.Role != nil {
		switch *r.Role {
		case model.RoleAdmin, model.RoleLegal, model.RoleBusiness:
		default:
			return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, *r.Role)
		}
	}
	return nil
}

// UserService manages platform users and mirrors them into the identity
// provider, which owns credentials.
type UserService struct {
	db       *bun.DB
	provider *idp.Client
}

func NewUserService(db *bun.DB, provider *idp.Client) *UserService {
	return &UserService{db: db, provider: provider}
}

func (s *UserService) repo(idb bun.IDB) *crud.Repository[model.User] {
	return crud.NewRepository[model.User](idb, userWhitelist)
}

func (s *UserService) Create(ctx context.Context, req UserCreate) (*model.User, error) {
	return s.CreateTx(ctx, nil, req)
}

// CreateTx inserts the local record inside the transaction after the
// provider mirror succeeds, so a provider failure rolls the local row back.
// A provider-side duplicate is tolerated: the existing provider user is
// adopted by email lookup.
func (s *UserService) CreateTx(ctx context.Context, tx bun.IDB, req UserCreate) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.User
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Account](ctx, idb, req.AccountID); err != nil {
			return err
		}
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}

		externalID, err := s.mirrorCreate(ctx, req)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entity := &model.User{
			AccountID:  req.AccountID,
			CompanyID:  req.CompanyID,
			ExternalID: externalID,
			Email:      req.Email,
			FirstName:  req.FirstName,
			MiddleName: req.MiddleName,
			LastName:   req.LastName,
			Title:      req.Title,
			Phone:      req.Phone,
			Role:       req.Role,
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

func (s *UserService) mirrorCreate(ctx context.Context, req UserCreate) (uuid.UUID, error) {
	if s.provider == nil {
		return uuid.New(), nil
	}
	name := strings.TrimSpace(req.FirstName + " " + req.LastName)
	pu, err := s.provider.CreateUser(ctx, req.Email, name, req.Password)
	if err == nil {
		return pu.ID, nil
	}
	if !errors.Is(err, idp.ErrUserExists) {
		return uuid.Nil, err
	}
	obs.Logger().Printf(`{"type":"idp","event":"create_user_exists","email":%q}`, req.Email)
	existing, err := s.provider.ListUsers(ctx, req.Email)
	if err != nil {
		return uuid.Nil, err
	}
	if len(existing) == 0 {
		return uuid.Nil, fmt.Errorf("%w: provider reported a duplicate but the lookup found none", domain.ErrUpstream)
	}
	return existing[0].ID, nil
}

func (s *UserService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.User], error) {
	return s.repo(s.db).Find(ctx, q)
}

func (s *UserService) FindOne(ctx context.Context, id int64) (*model.User, error) {
	return s.repo(s.db).FindByID(ctx, id)
}

// FindByExternalID resolves the platform user for a verified token subject.
func (s *UserService) FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.User, error) {
	entity := new(model.User)
	err := s.db.NewSelect().Model(entity).Where("external_id = ?", externalID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no user for subject %s", domain.ErrUnauthorized, externalID)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *UserService) Update(ctx context.Context, id int64, req UserUpdate) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.User
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Email != nil {
			entity.Email = *req.Email
		}
		if req.FirstName != nil {
			entity.FirstName = *req.FirstName
		}
		if req.MiddleName != nil {
			entity.MiddleName = *req.MiddleName
		}
		if req.LastName != nil {
			entity.LastName = *req.LastName
		}
		if req.Title != nil {
			entity.Title = *req.Title
		}
		if req.Phone != nil {
			entity.Phone = *req.Phone
		}
		if req.Role != nil {
			entity.Role = *req.Role
		}
		entity.Touch(time.Now())
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}
		if s.provider != nil && (req.Email != nil || req.FirstName != nil || req.LastName != nil) {
			name := strings.TrimSpace(entity.FirstName + " " + entity.LastName)
			if err := s.provider.UpdateUser(ctx, entity.ExternalID, entity.Email, name); err != nil {
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

// Delete soft-deletes the local record. The provider mirror stays so the
// user can be restored with working credentials.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *UserService) Restore(ctx context.Context, id int64) (*model.User, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}

// Purge removes the user permanently, provider mirror included.
func (s *UserService) Purge(ctx context.Context, id int64) error {
	entity, err := s.repo(s.db).FindByIDAny(ctx, id)
	if err != nil {
		return err
	}
	if s.provider != nil {
		if err := s.provider.DeleteUser(ctx, entity.ExternalID); err != nil {
			return err
		}
	}
	return s.repo(s.db).HardDelete(ctx, id)
}
