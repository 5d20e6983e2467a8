package model

import "time"

type VersionStatus string

const (
	VersionPending  VersionStatus = "pending"
	VersionApproved VersionStatus = "approved"
	VersionRejected VersionStatus = "rejected"
)

// ExamPaperVersion is an immutable snapshot of a paper's content.
// Rows are only ever inserted; a correction produces version N+1.
// swagger:model ExamPaperVersion
type ExamPaperVersion struct {
	BaseModel

	PaperID       uint          `gorm:"uniqueIndex:idx_paper_version,priority:1;type:bigint unsigned" json:"paperId"`
	VersionNumber int           `gorm:"uniqueIndex:idx_paper_version,priority:2;not null" json:"versionNumber"`
	Content       []byte        `gorm:"type:longblob" json:"-"`
	Checksum      string        `gorm:"size:64;not null" json:"checksum"`
	Status        VersionStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	CreatorID     uint          `gorm:"index;type:bigint unsigned" json:"creatorId"`
	ApproverID    *uint         `gorm:"type:bigint unsigned" json:"approverId,omitempty"`
	ApprovedAt    *time.Time    `json:"approvedAt,omitempty"`
	ChangeSummary string        `gorm:"type:text" json:"changeSummary,omitempty"`
}

func (ExamPaperVersion) TableName() string {
	return "exam_paper_versions"
}

func (s VersionStatus) BadgeColor() string {
	switch s {
	case VersionApproved:
		return "green"
	case VersionRejected:
		return "red"
	}
	return "blue"
}
