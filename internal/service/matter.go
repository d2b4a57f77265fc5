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

var matterWhitelist = crud.Whitelist{
	Searchable: []string{"name", "description"},
	Sortable:   []string{"id", "name", "status", "created_at"},
	Filterable: []string{"company_id", "status", "type"},
}

// MatterCreate is the create request for matters.
type MatterCreate struct {
	CompanyID   int64              `json:"company_id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Status      model.MatterStatus `json:"status"`
	Description string             `json:"description"`
	KeyDates    model.JSONMap      `json:"key_dates"`
	Attachments model.JSONList     `json:"attachments"`
	AssigneeIDs []int64            `json:"assignee_ids"`
}

func (r MatterCreate) Validate() error {
	if r.CompanyID == 0 {
		return fmt.Errorf("%w: company_id is required", domain.ErrInvalidInput)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: type is required", domain.ErrInvalidInput)
	}
	if err := validMatterStatus(r.Status); err != nil {
		return err
	}
	return nil
}

// MatterUpdate is the partial-update request; nil fields stay untouched.
// A non-nil AssigneeIDs replaces the assignee set wholesale.
type MatterUpdate struct {
	Name        *string             `json:"name"`
	Type        *string             `json:"type"`
	Status      *model.MatterStatus `json:"status"`
	Description *string             `json:"description"`
	KeyDates    *model.JSONMap      `json:"key_dates"`
	Attachments *model.JSONList     `json:"attachments"`
	AssigneeIDs *[]int64            `json:"assignee_ids"`
}

func (r MatterUpdate) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name cannot be emptied", domain.ErrInvalidInput)
	}
	if r.Status != nil {
		return validMatterStatus(*r.Status)
	}
	return nil
}

func validMatterStatus(s model.MatterStatus) error {
	switch s {
	case model.MatterActive, model.MatterOnHold, model.MatterClosed, model.MatterArchive:
		return nil
	default:
		return fmt.Errorf("%w: unknown matter status %q", domain.ErrInvalidInput, s)
	}
}

// MatterService manages matters and their assignee set.
type MatterService struct {
	db *bun.DB
}

func NewMatterService(db *bun.DB) *MatterService {
	return &MatterService{db: db}
}

func (s *MatterService) repo(idb bun.IDB) *crud.Repository[model.Matter] {
	return crud.NewRepository[model.Matter](idb, matterWhitelist)
}

func (s *MatterService) Create(ctx context.Context, req MatterCreate) (*model.Matter, error) {
	return s.CreateTx(ctx, nil, req)
}

func (s *MatterService) CreateTx(ctx context.Context, tx bun.IDB, req MatterCreate) (*model.Matter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *model.Matter
	err := store.InTx(ctx, s.db, tx, func(ctx context.Context, idb bun.IDB) error {
		if err := crud.Exists[model.Company](ctx, idb, req.CompanyID); err != nil {
			return err
		}
		for _, uid := range req.AssigneeIDs {
			if err := crud.Exists[model.User](ctx, idb, uid); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		entity := &model.Matter{
			CompanyID:   req.CompanyID,
			Name:        req.Name,
			Type:        req.Type,
			Status:      req.Status,
			Description: req.Description,
			KeyDates:    req.KeyDates,
			Attachments: req.Attachments,
		}
		entity.CreatedAt = now
		entity.UpdatedAt = now
		if err := s.repo(idb).Insert(ctx, entity); err != nil {
			return err
		}
		if err := s.replaceAssignees(ctx, idb, entity.ID, req.AssigneeIDs); err != nil {
			return err
		}
		entity.AssigneeIDs = req.AssigneeIDs
		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *MatterService) replaceAssignees(ctx context.Context, idb bun.IDB, matterID int64, userIDs []int64) error {
	if _, err := idb.NewDelete().Model((*model.MatterAssignee)(nil)).
		Where("matter_id = ?", matterID).ForceDelete().Exec(ctx); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]*model.MatterAssignee, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, &model.MatterAssignee{MatterID: matterID, UserID: uid})
	}
	_, err := idb.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (s *MatterService) loadAssignees(ctx context.Context, matters ...*model.Matter) error {
	if len(matters) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(matters))
	byID := make(map[int64]*model.Matter, len(matters))
	for _, m := range matters {
		ids = append(ids, m.ID)
		byID[m.ID] = m
		m.AssigneeIDs = nil
	}
	var rows []*model.MatterAssignee
	err := s.db.NewSelect().Model(&rows).
		Where("matter_id IN (?)", bun.In(ids)).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		m := byID[row.MatterID]
		m.AssigneeIDs = append(m.AssigneeIDs, row.UserID)
	}
	return nil
}

func (s *MatterService) Find(ctx context.Context, q crud.Query) (*crud.Page[model.Matter], error) {
	page, err := s.repo(s.db).Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignees(ctx, page.Items...); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *MatterService) FindOne(ctx context.Context, id int64) (*model.Matter, error) {
	entity, err := s.repo(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignees(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *MatterService) Update(ctx context.Context, id int64, req MatterUpdate) (*model.Matter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated *model.Matter
	err := store.InTx(ctx, s.db, nil, func(ctx context.Context, idb bun.IDB) error {
		repo := s.repo(idb)
		entity, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
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
		if req.Description != nil {
			entity.Description = *req.Description
		}
		if req.KeyDates != nil {
			entity.KeyDates = *req.KeyDates
		}
		if req.Attachments != nil {
			entity.Attachments = *req.Attachments
		}
		entity.Touch(time.Now())
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}
		if req.AssigneeIDs != nil {
			for _, uid := range *req.AssigneeIDs {
				if err := crud.Exists[model.User](ctx, idb, uid); err != nil {
					return err
				}
			}
			if err := s.replaceAssignees(ctx, idb, id, *req.AssigneeIDs); err != nil {
				return err
			}
			entity.AssigneeIDs = *req.AssigneeIDs
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.AssigneeIDs == nil {
		if err := s.loadAssignees(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *MatterService) Delete(ctx context.Context, id int64) error {
	return s.repo(s.db).SoftDelete(ctx, id)
}

func (s *MatterService) Restore(ctx context.Context, id int64) (*model.Matter, error) {
	return s.repo(s.db).Restore(ctx, id, time.Now())
}
