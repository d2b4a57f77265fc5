package service

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"counselflow.org/internal/crud"
	"counselflow.org/internal/model"
)

// DashboardSummary aggregates workload counts, optionally scoped to one
// company.
type DashboardSummary struct {
	MattersByStatus  map[string]int `json:"matters_by_status"`
	RisksBySeverity  map[string]int `json:"risks_by_severity"`
	DisputesByStatus map[string]int `json:"disputes_by_status"`
	OpenActions      int            `json:"open_actions"`
	OverdueActions   int            `json:"overdue_actions"`
}

// DashboardService computes the summary counters shown on the landing view.
type DashboardService struct {
	db *bun.DB
}

func NewDashboardService(db *bun.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Summary returns the aggregate counters. companyID == 0 means platform-wide.
func (s *DashboardService) Summary(ctx context.Context, companyID int64) (*DashboardSummary, error) {
	if companyID != 0 {
		if err := crud.Exists[model.Company](ctx, s.db, companyID); err != nil {
			return nil, err
		}
	}
	out := &DashboardSummary{
		MattersByStatus:  map[string]int{},
		RisksBySeverity:  map[string]int{},
		DisputesByStatus: map[string]int{},
	}

	var err error
	if out.MattersByStatus, err = s.countBy(ctx, (*model.Matter)(nil), "status", companyID); err != nil {
		return nil, err
	}
	if out.RisksBySeverity, err = s.countBy(ctx, (*model.Risk)(nil), "severity", companyID); err != nil {
		return nil, err
	}
	if out.DisputesByStatus, err = s.countBy(ctx, (*model.Dispute)(nil), "status", companyID); err != nil {
		return nil, err
	}

	open := s.db.NewSelect().Model((*model.Action)(nil)).Where("completion_date IS NULL")
	if companyID != 0 {
		open = open.Where("company_id = ?", companyID)
	}
	if out.OpenActions, err = open.Count(ctx); err != nil {
		return nil, err
	}

	overdue := s.db.NewSelect().Model((*model.Action)(nil)).
		Where("completion_date IS NULL").
		Where("due_date IS NOT NULL").
		Where("due_date < ?", time.Now().UTC())
	if companyID != 0 {
		overdue = overdue.Where("company_id = ?", companyID)
	}
	if out.OverdueActions, err = overdue.Count(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) countBy(ctx context.Context, m any, column string, companyID int64) (map[string]int, error) {
	var rows []struct {
		Key   string `bun:"key"`
		Count int    `bun:"count"`
	}
	sel := s.db.NewSelect().Model(m).
		ColumnExpr("? AS key", bun.Ident(column)).
		ColumnExpr("count(*) AS count").
		GroupExpr("?", bun.Ident(column))
	if companyID != 0 {
		sel = sel.Where("company_id = ?", companyID)
	}
	if err := sel.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
