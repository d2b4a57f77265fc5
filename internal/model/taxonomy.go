package model

import "github.com/uptrace/bun"

// Sector classifies companies by industry.
type Sector struct {
	bun.BaseModel `bun:"table:sectors,alias:se"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`

	Timestamps
}

// Category tags matters by practice area.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:ca"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`

	Timestamps
}
