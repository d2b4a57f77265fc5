package model

import "time"

// Timestamps carries the lifecycle columns shared by every entity. A non-zero
// DeletedAt marks the row logically absent; it stays restorable until a hard
// delete removes it.
type Timestamps struct {
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitzero"`
}

// Touch refreshes UpdatedAt ahead of a persisted mutation.
func (t *Timestamps) Touch(now time.Time) {
	t.UpdatedAt = now.UTC()
}
