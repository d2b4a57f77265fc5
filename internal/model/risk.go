package model

import "github.com/uptrace/bun"

// RiskSeverity buckets risk exposure for reporting.
type RiskSeverity string

const (
	RiskLow      RiskSeverity = "Low"
	RiskMedium   RiskSeverity = "Medium"
	RiskHigh     RiskSeverity = "High"
	RiskCritical RiskSeverity = "Critical"
)

// Risk is an identified exposure attached to a matter.
type Risk struct {
	bun.BaseModel `bun:"table:risks,alias:r"`

	ID               int64        `bun:"id,pk,autoincrement" json:"id"`
	MatterID         int64        `bun:"matter_id,notnull" json:"matter_id"`
	CompanyID        int64        `bun:"company_id,notnull" json:"company_id"`
	Name             string       `bun:"name,notnull" json:"name"`
	Category         string       `bun:"category,nullzero" json:"category,omitempty"`
	Severity         RiskSeverity `bun:"severity,notnull" json:"severity"`
	Likelihood       string       `bun:"likelihood,nullzero" json:"likelihood,omitempty"`
	FinancialImpact  int64        `bun:"financial_impact,nullzero" json:"financial_impact,omitempty"`
	Mitigation       string       `bun:"mitigation,nullzero" json:"mitigation,omitempty"`
	Status           string       `bun:"status,notnull" json:"status"`
	ReminderSettings JSONMap      `bun:"reminder_settings,type:jsonb" json:"reminder_settings,omitempty"`
	Attachments      JSONList     `bun:"attachments,type:jsonb" json:"attachments,omitempty"`

	Timestamps
}
