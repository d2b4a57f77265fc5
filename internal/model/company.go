package model

import "github.com/uptrace/bun"

// CompanyKind classifies how a company relates to the tenant.
type CompanyKind string

const (
	CompanyClient       CompanyKind = "CLIENT"
	CompanyCounterparty CompanyKind = "COUNTERPARTY"
	CompanyLawFirm      CompanyKind = "LAW_FIRM"
	CompanyRegulator    CompanyKind = "REGULATOR"
)

// Company is an organization tracked by the platform. Companies form a tree
// (subsidiaries) materialized in company_closure.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:co"`

	ID           int64       `bun:"id,pk,autoincrement" json:"id"`
	Name         string      `bun:"name,notnull" json:"name"`
	Kind         CompanyKind `bun:"kind,notnull" json:"kind"`
	Email        string      `bun:"email,unique,nullzero" json:"email,omitempty"`
	Phone        string      `bun:"phone,nullzero" json:"phone,omitempty"`
	Website      string      `bun:"website,nullzero" json:"website,omitempty"`
	Address      string      `bun:"address,nullzero" json:"address,omitempty"`
	CountryID    *int64      `bun:"country_id" json:"country_id,omitempty"`
	StateID      *int64      `bun:"state_id" json:"state_id,omitempty"`
	CityID       *int64      `bun:"city_id" json:"city_id,omitempty"`
	SectorID     *int64      `bun:"sector_id" json:"sector_id,omitempty"`
	ParentID     *int64      `bun:"parent_id" json:"parent_id,omitempty"`
	Shareholders JSONList    `bun:"shareholders,type:jsonb" json:"shareholders,omitempty"`
	Directors    JSONList    `bun:"directors,type:jsonb" json:"directors,omitempty"`

	Timestamps
}

// CompanyClosure stores one row per ancestor/descendant pair, including the
// zero-depth self pair, so subtree queries stay single joins.
type CompanyClosure struct {
	bun.BaseModel `bun:"table:company_closure,alias:cc"`

	AncestorID   int64 `bun:"ancestor_id,pk" json:"ancestor_id"`
	DescendantID int64 `bun:"descendant_id,pk" json:"descendant_id"`
	Depth        int   `bun:"depth,notnull" json:"depth"`
}
