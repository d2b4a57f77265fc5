package model

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole scopes what a user may do.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleLegal    UserRole = "LEGAL"
	RoleBusiness UserRole = "BUSINESS"
)

// User is a person operating on behalf of a company. ExternalID matches the
// UUID embedded in the identity provider's subject claim.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	AccountID  int64     `bun:"account_id,notnull" json:"account_id"`
	CompanyID  int64     `bun:"company_id,notnull" json:"company_id"`
	ExternalID uuid.UUID `bun:"external_id,notnull,type:uuid" json:"external_id"`
	Email      string    `bun:"email,notnull" json:"email"`
	FirstName  string    `bun:"first_name,nullzero" json:"first_name,omitempty"`
	MiddleName string    `bun:"middle_name,nullzero" json:"middle_name,omitempty"`
	LastName   string    `bun:"last_name,nullzero" json:"last_name,omitempty"`
	Title      string    `bun:"title,nullzero" json:"title,omitempty"`
	Phone      string    `bun:"phone,nullzero" json:"phone,omitempty"`
	Role       UserRole  `bun:"role,notnull" json:"role"`

	Timestamps
}
