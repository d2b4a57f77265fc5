package model

import "github.com/uptrace/bun"

// Account is the billing/tenancy record that owns a company's users. At most
// one account may carry the admin flag.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:ac"`

	ID               int64  `bun:"id,pk,autoincrement" json:"id"`
	CompanyID        int64  `bun:"company_id,notnull" json:"company_id"`
	OrganizationSize string `bun:"organization_size,nullzero" json:"organization_size,omitempty"`
	IsAdmin          bool   `bun:"is_admin,notnull,default:false" json:"is_admin"`

	Timestamps
}
