package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Action is a follow-up task on a matter. Actions nest: sub-actions point at
// a parent, and the full hierarchy is materialized in action_closure.
type Action struct {
	bun.BaseModel `bun:"table:actions,alias:a"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	MatterID         int64      `bun:"matter_id,notnull" json:"matter_id"`
	CompanyID        int64      `bun:"company_id,notnull" json:"company_id"`
	ParentID         *int64     `bun:"parent_id" json:"parent_id,omitempty"`
	Name             string     `bun:"name,notnull" json:"name"`
	Type             string     `bun:"type,nullzero" json:"type,omitempty"`
	Status           string     `bun:"status,notnull" json:"status"`
	Priority         string     `bun:"priority,nullzero" json:"priority,omitempty"`
	DueDate          *time.Time `bun:"due_date" json:"due_date,omitempty"`
	CompletionDate   *time.Time `bun:"completion_date" json:"completion_date,omitempty"`
	ReminderSettings JSONMap    `bun:"reminder_settings,type:jsonb" json:"reminder_settings,omitempty"`
	Attachments      JSONList   `bun:"attachments,type:jsonb" json:"attachments,omitempty"`

	Timestamps
}

// ActionClosure stores ancestor/descendant pairs for the action tree,
// including zero-depth self pairs.
type ActionClosure struct {
	bun.BaseModel `bun:"table:action_closure,alias:acl"`

	AncestorID   int64 `bun:"ancestor_id,pk" json:"ancestor_id"`
	DescendantID int64 `bun:"descendant_id,pk" json:"descendant_id"`
	Depth        int   `bun:"depth,notnull" json:"depth"`
}
