package model

import "time"

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalDelegated ApprovalStatus = "delegated"
)

type ApprovalPriority string

const (
	PriorityLow    ApprovalPriority = "low"
	PriorityMedium ApprovalPriority = "medium"
	PriorityHigh   ApprovalPriority = "high"
)

// ApprovalRequest is one decision cycle over one paper version. A request
// leaves pending exactly once; delegation spawns a fresh pending request
// for the delegate instead of reassigning this one.
// swagger:model ApprovalRequest
type ApprovalRequest struct {
	BaseModel

	PaperID          uint             `gorm:"index;type:bigint unsigned" json:"paperId"`
	VersionID        uint             `gorm:"index;type:bigint unsigned" json:"versionId"`
	ApproverID       uint             `gorm:"index;type:bigint unsigned" json:"approverId"`
	Status           ApprovalStatus   `gorm:"size:20;index;default:'pending'" json:"status"`
	Priority         ApprovalPriority `gorm:"size:10;default:'medium'" json:"priority"`
	ApprovalDeadline *time.Time       `json:"approvalDeadline,omitempty"`
	Comments         string           `gorm:"type:text" json:"comments,omitempty"`
	Feedback         string           `gorm:"type:text" json:"feedback,omitempty"`
	IsSigned         bool             `gorm:"default:false" json:"isSigned"`
	SignedAt         *time.Time       `json:"signedAt,omitempty"`
	DelegatedTo      *uint            `gorm:"type:bigint unsigned" json:"delegatedTo,omitempty"`
	DelegationReason string           `gorm:"type:text" json:"delegationReason,omitempty"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// IsOverdue is derived; a passed deadline never transitions the request.
func (r *ApprovalRequest) IsOverdue() bool {
	return r.Status == ApprovalPending &&
		r.ApprovalDeadline != nil &&
		time.Now().After(*r.ApprovalDeadline)
}

func (s ApprovalStatus) BadgeColor() string {
	switch s {
	case ApprovalApproved:
		return "green"
	case ApprovalRejected:
		return "red"
	case ApprovalDelegated:
		return "orange"
	}
	return "blue"
}
