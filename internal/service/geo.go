package service

import (
	"context"

	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/model"
)

// GeoService serves the seeded country/state/city reference data. Read-only.
type GeoService struct {
	db *bun.DB
}

func NewGeoService(db *bun.DB) *GeoService {
	return &GeoService{db: db}
}

func (s *GeoService) Countries(ctx context.Context) ([]*model.Country, error) {
	var items []*model.Country
	err := s.db.NewSelect().Model(&items).Order("name ASC").Scan(ctx)
	return items, err
}

// States lists the states of one country, erroring when the country is
// unknown so callers see a proper not-found instead of an empty list.
func (s *GeoService) States(ctx context.Context, countryID int64) ([]*model.State, error) {
	if err := crud.Exists[model.Country](ctx, s.db, countryID); err != nil {
		return nil, err
	}
	var items []*model.State
	err := s.db.NewSelect().Model(&items).
		Where("country_id = ?", countryID).
		Order("name ASC").
		Scan(ctx)
	return items, err
}

func (s *GeoService) Cities(ctx context.Context, stateID int64) ([]*model.City, error) {
	if err := crud.Exists[model.State](ctx, s.db, stateID); err != nil {
		return nil, err
	}
	var items []*model.City
	err := s.db.NewSelect().Model(&items).
		Where("state_id = ?", stateID).
		Order("name ASC").
		Scan(ctx)
	return items, err
}
