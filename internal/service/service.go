// Package service implements the business rules on top of the generic CRUD
// repository: validation, foreign-key guards, tree maintenance and the
// identity-provider mirroring for users. Every service method accepting an
// optional bun.IDB joins a caller-owned transaction when one is passed and
// otherwise opens its own.
package service

import (
	"github.com/uptrace/bun"

	"counselflow.org/internal/idp"
)

// Services bundles one instance of every entity service over a shared handle.
type Services struct {
	Companies  *CompanyService
	Accounts   *AccountService
	Users      *UserService
	Matters    *MatterService
	Risks      *RiskService
	Actions    *ActionService
	Disputes   *DisputeService
	Geo        *GeoService
	Sectors    *SectorService
	Categories *CategoryService
	Dashboard  *DashboardService
}

// New wires the full service set.
func New(db *bun.DB, provider *idp.Client) *Services {
	return &Services{
		Companies:  NewCompanyService(db),
		Accounts:   NewAccountService(db),
		Users:      NewUserService(db, provider),
		Matters:    NewMatterService(db),
		Risks:      NewRiskService(db),
		Actions:    NewActionService(db),
		Disputes:   NewDisputeService(db),
		Geo:        NewGeoService(db),
		Sectors:    NewSectorService(db),
		Categories: NewCategoryService(db),
		Dashboard:  NewDashboardService(db),
	}
}
