package model

import "time"

type PaperStatus string

const (
	PaperDraft     PaperStatus = "draft"
	PaperSubmitted PaperStatus = "submitted"
	PaperApproved  PaperStatus = "approved"
	PaperRejected  PaperStatus = "rejected"
	PaperPublished PaperStatus = "published"
)

// swagger:model ExamPaper
type ExamPaper struct {
	BaseModel

	Code               string      `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Title              string      `gorm:"size:255;not null" json:"title"`
	Status             PaperStatus `gorm:"size:20;index;default:'draft'" json:"status"`
	CreatorID          uint        `gorm:"index;type:bigint unsigned" json:"creatorId"`
	ReviewerID         uint        `gorm:"index;type:bigint unsigned" json:"reviewerId"`
	CurrentVersionID   uint        `gorm:"index;type:bigint unsigned" json:"currentVersionId"`
	SubmissionDeadline *time.Time  `json:"submissionDeadline,omitempty"`
	RejectionReason    string      `gorm:"type:text" json:"rejectionReason,omitempty"`
	PublishedAt        *time.Time  `json:"publishedAt,omitempty"`
}

func (ExamPaper) TableName() string {
	return "exam_papers"
}

// BadgeColor maps a paper status to the color used by the front end.
func (s PaperStatus) BadgeColor() string {
	switch s {
	case PaperDraft:
		return "gray"
	case PaperSubmitted:
		return "blue"
	case PaperApproved:
		return "green"
	case PaperRejected:
		return "red"
	case PaperPublished:
		return "purple"
	}
	return "gray"
}
