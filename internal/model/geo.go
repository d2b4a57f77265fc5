package model

import "github.com/uptrace/bun"

// Geo reference data is seeded and read-only; it carries no soft-delete
// lifecycle.

type Country struct {
	bun.BaseModel `bun:"table:countries,alias:cn"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
	Code string `bun:"code,notnull,unique" json:"code"`
}

type State struct {
	bun.BaseModel `bun:"table:states,alias:st"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	CountryID int64  `bun:"country_id,notnull" json:"country_id"`
	Name      string `bun:"name,notnull" json:"name"`
}

type City struct {
	bun.BaseModel `bun:"table:cities,alias:ci"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	StateID int64  `bun:"state_id,notnull" json:"state_id"`
	Name    string `bun:"name,notnull" json:"name"`
}
