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

var actionWhitelist = crud.Whitelist{
	Searchable: []string{"name"},
	Sortable:   []string{"id", "name", "status", "priority", "due_date", "created_at"},
	Filterable: []string{"matter_id", "company_id", "status", "priority", "parent_id"},
}

// ActionCreate is the create request for actions. ParentID nests the new
// action under an existing one on the same matter.
type ActionCreate struct {
	MatterID         int64          `json:"matter_id"`
	CompanyID        int64          `json:"company_id"`
	ParentID         *int64         `json:"parent_id"`
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	Status           string         `json:"status"`
	Priority         string         `json:"priority"`
	DueDate          *time.Time     `json:"due_date"`
	ReminderSettings model.JSONMap  `json:"reminder_settings"`
	Attachments      model.JSONList `json:"attachments"`
}

func (r ActionCreate) Validate() error {
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
	return nil
}

// ActionUpdate is the partial-update request; nil fields stay untouched.
type ActionUpdate struct {
	ParentID         *int64          `json:"parent_id"`
	Name             *string         `json:"name"`
	Type             *string         `json:"type"`
	Status           *string         `json:"status"`
	Priority         *string         `json:"priority"`
	DueDate          *time.Time      `json:"due_date"`
	CompletionDate   *time.Time      `json:"completion_date"`
	ReminderSettings *model.JSONMap  `json:"reminder_settings"`
	Attachments      *model.JSONList `json:"attachments"`
}

func (r ActionUpdate) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name cannot be emptied", domain.ErrInvalidInput)
	}
	return nil
}

// ActionService manages the nested action tasks on matters.
type ActionService struct {
	db *bun.DB
}

func NewActionService(db *bun.DB) *ActionService {
	return &ActionService{db: db}
}

func (s *ActionService) repo(idb bun.IDB) *crud.Repository[model.Action] {
	return crud.NewRepository[model.Action](idb, actionWhitelist)
}

func (s *ActionService) Create(ctx context.Context, req ActionCreate) (*model.Action, error) {
	return s.CreateTx(ctx, nil, req)
}

func (s *ActionService) CreateTx(ctx context.Context, tx bun.IDB, req ActionCreate) (*model.Action, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Action
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Matter](ctx, idb, req.MatterID); err != nil {
			return err
		}
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}
		if req.ParentID != nil {
			parent, err := crud.NewRepository[model.Action](idb, actionWhitelist).FindByID(ctx, *req.ParentID)
			if err != nil {
				return err
			}
			if parent.MatterID != req.MatterID {
				return fmt.Errorf("%w: parent action belongs to a different matter", domain.ErrInvalidInput)
			}
		}
		now := time.Now().UTC()
		entity := &model.Action{
			MatterID:         req.MatterID,
			CompanyID:        req.CompanyID,
			ParentID:         req.ParentID,
			Name:             req.Name,
			Type:             req.Type,
			Status:           req.Status,
			Priority:         req.Priority,
			DueDate:          req.DueDate,
			ReminderSettings: req.ReminderSettings,
			Attachments:      req.Attachments,
		}
		entity.CreatedAt = now
		entity.UpdatedAt = now
		if err := s.repo(idb).Insert(ctx, entity); err != nil {
			return err
		}
		if err := insertClosure(ctx, idb, "action_closure", entity.ID, entity.ParentID); err != nil {
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

func (s *ActionService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Action], error) {
	return s.repo(s.db).Find(ctx, q)
}

func (s *ActionService) FindOne(ctx context.Context, id int64) (*model.Action, error) {
	return s.repo(s.db).FindByID(ctx, id)
}

func (s *ActionService) Update(ctx context.Context, id int64, req ActionUpdate) (*model.Action, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Action
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		reparent := req.ParentID != nil && (entity.ParentID == nil || *entity.ParentID != *req.ParentID)
		if reparent {
			parent, err := repo.FindByID(ctx, *req.ParentID)
			if err != nil {
				return err
			}
			if parent.MatterID != entity.MatterID {
				return fmt.Errorf("%w: parent action belongs to a different matter", domain.ErrInvalidInput)
			}
			entity.ParentID = req.ParentID
		}
		if req.Name != nil {
			entity.Name = *req.Name
		}
		if req.Type != nil {
			entity.Type = *req.Type
		}
		if req.Status != nil {
			entity.Status = *req.Status
		}
		if req.Priority != nil {
			entity.Priority = *req.Priority
		}
		if req.DueDate != nil {
			entity.DueDate = req.DueDate
		}
		if req.CompletionDate != nil {
			entity.CompletionDate = req.CompletionDate
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
		if reparent {
			if err := moveSubtree(ctx, idb, "action_closure", id, req.ParentID); err != nil {
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

func (s *ActionService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *ActionService) Restore(ctx context.Context, id int64) (*model.Action, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}

// Children lists direct sub-actions of the given action.
func (s *ActionService) Children(ctx context.Context, id int64) ([]*model.Action, error) {
	if err := crud.Exists[model.Action](ctx, s.db, id); err != nil {
		return nil, err
	}
	var items []*model.Action
	err := s.db.NewSelect().Model(&items).
		Join("JOIN action_closure AS acl ON acl.descendant_id = a.id").
		Where("acl.ancestor_id = ?", id).
		Where("acl.depth = 1").
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}
