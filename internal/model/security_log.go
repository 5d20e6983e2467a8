package model

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type InvestigationStatus string

const (
	InvestigationNone       InvestigationStatus = "none"
	InvestigationInProgress InvestigationStatus = "investigating"
	InvestigationResolved   InvestigationStatus = "resolved"
)

// SecurityLog is append-only: rows are inserted and never updated except
// the investigation fields, which only move forward
// (none -> investigating -> resolved). No BaseModel here on purpose —
// the table carries no UpdatedAt/DeletedAt because entries are never
// edited or soft-deleted.
// swagger:model SecurityLog
type SecurityLog struct {
	ID                  uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	PaperID             *uint               `gorm:"index;type:bigint unsigned" json:"paperId,omitempty"`
	ActorID             *uint               `gorm:"index;type:bigint unsigned" json:"actorId,omitempty"`
	Action              string              `gorm:"size:50;index;not null" json:"action"`
	ResourceType        string              `gorm:"size:50;not null" json:"resourceType"`
	ResourceID          uint                `gorm:"type:bigint unsigned" json:"resourceId"`
	Description         string              `gorm:"type:text" json:"description"`
	Severity            Severity            `gorm:"size:10;index;not null" json:"severity"`
	RiskLevel           RiskLevel           `gorm:"size:10;index;not null" json:"riskLevel"`
	IsSuspicious        bool                `gorm:"index;default:false" json:"isSuspicious"`
	InvestigationStatus InvestigationStatus `gorm:"size:15;index;default:'none'" json:"investigationStatus"`
	InvestigatorID      *uint               `gorm:"type:bigint unsigned" json:"investigatorId,omitempty"`
	InvestigationNotes  string              `gorm:"type:text" json:"investigationNotes,omitempty"`
	CreatedAt           time.Time           `gorm:"index" json:"createdAt"`
}

func (SecurityLog) TableName() string {
	return "security_logs"
}

func (r RiskLevel) BadgeColor() string {
	switch r {
	case RiskLow:
		return "green"
	case RiskMedium:
		return "yellow"
	case RiskHigh:
		return "orange"
	case RiskCritical:
		return "red"
	}
	return "gray"
}
