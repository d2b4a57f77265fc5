package model

import "github.com/uptrace/bun"

// MatterStatus tracks a matter through its lifecycle.
type MatterStatus string

const (
	MatterActive  MatterStatus = "Active"
	MatterOnHold  MatterStatus = "OnHold"
	MatterClosed  MatterStatus = "Closed"
	MatterArchive MatterStatus = "Archived"
)

// Matter is a unit of legal work owned by a company.
type Matter struct {
	bun.BaseModel `bun:"table:matters,alias:m"`

	ID          int64        `bun:"id,pk,autoincrement" json:"id"`
	CompanyID   int64        `bun:"company_id,notnull" json:"company_id"`
	Name        string       `bun:"name,notnull" json:"name"`
	Type        string       `bun:"type,notnull" json:"type"`
	Status      MatterStatus `bun:"status,notnull" json:"status"`
	Description string       `bun:"description,nullzero" json:"description,omitempty"`
	KeyDates    JSONMap      `bun:"key_dates,type:jsonb" json:"key_dates,omitempty"`
	Attachments JSONList     `bun:"attachments,type:jsonb" json:"attachments,omitempty"`

	// Populated from matter_assignees on reads; never persisted directly.
	AssigneeIDs []int64 `bun:"-" json:"assignee_ids,omitempty"`

	Timestamps
}

// MatterAssignee joins matters to the users working them.
type MatterAssignee struct {
	bun.BaseModel `bun:"table:matter_assignees,alias:ma"`

	MatterID int64 `bun:"matter_id,pk" json:"matter_id"`
	UserID   int64 `bun:"user_id,pk" json:"user_id"`
}
