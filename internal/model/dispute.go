package model

import "github.com/uptrace/bun"

// Dispute is a contested matter escalation, created together with its
// parties and claims in one unit of work.
type Dispute struct {
	bun.BaseModel `bun:"table:disputes,alias:d"`

	ID            int64   `bun:"id,pk,autoincrement" json:"id"`
	MatterID      int64   `bun:"matter_id,notnull" json:"matter_id"`
	CompanyID     int64   `bun:"company_id,notnull" json:"company_id"`
	Title         string  `bun:"title,notnull" json:"title"`
	Description   string  `bun:"description,nullzero" json:"description,omitempty"`
	Status        string  `bun:"status,notnull" json:"status"`
	Stage         string  `bun:"stage,nullzero" json:"stage,omitempty"`
	AmountClaimed int64   `bun:"amount_claimed,nullzero" json:"amount_claimed,omitempty"`
	Currency      string  `bun:"currency,nullzero" json:"currency,omitempty"`
	KeyDates      JSONMap `bun:"key_dates,type:jsonb" json:"key_dates,omitempty"`

	Parties []*DisputeParty `bun:"rel:has-many,join:id=dispute_id" json:"parties,omitempty"`
	Claims  []*DisputeClaim `bun:"rel:has-many,join:id=dispute_id" json:"claims,omitempty"`

	Timestamps
}

// DisputeParty names a participant in a dispute.
type DisputeParty struct {
	bun.BaseModel `bun:"table:dispute_parties,alias:dp"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	DisputeID int64  `bun:"dispute_id,notnull" json:"dispute_id"`
	CompanyID *int64 `bun:"company_id" json:"company_id,omitempty"`
	Name      string `bun:"name,notnull" json:"name"`
	Role      string `bun:"role,notnull" json:"role"`
}

// DisputeClaim is a single head of claim within a dispute.
type DisputeClaim struct {
	bun.BaseModel `bun:"table:dispute_claims,alias:dc"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	DisputeID   int64  `bun:"dispute_id,notnull" json:"dispute_id"`
	Description string `bun:"description,notnull" json:"description"`
	Amount      int64  `bun:"amount,nullzero" json:"amount,omitempty"`
}
