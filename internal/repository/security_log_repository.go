package repository

import (
	"time"

	"exam_paper_backend/internal/model"

	"gorm.io/gorm"
)

type SecurityLogRepository struct {
	DB *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) *SecurityLogRepository {
	return &SecurityLogRepository{DB: db}
}

// LogFilter narrows the security-log listing. Zero values mean "no filter".
type LogFilter struct {
	PaperID            uint
	Action             string
	Severity           model.Severity
	RiskLevel          model.RiskLevel
	From               *time.Time
	To                 *time.Time
	SuspiciousOnly     bool
	UnderInvestigation bool
}

func (r *SecurityLogRepository) Create(entry *model.SecurityLog) error {
	return r.DB.Create(entry).Error
}

func (r *SecurityLogRepository) FindByID(id uint) (*model.SecurityLog, error) {
	var entry model.SecurityLog
	err := r.DB.First(&entry, id).Error
	return &entry, err
}

func (r *SecurityLogRepository) List(filter LogFilter, page, limit int) ([]model.SecurityLog, int64, error) {
	var entries []model.SecurityLog
	var total int64

	query := r.DB.Model(&model.SecurityLog{})
	if filter.PaperID > 0 {
		query = query.Where("paper_id = ?", filter.PaperID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", filter.RiskLevel)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.SuspiciousOnly {
		query = query.Where("is_suspicious = ?", true)
	}
	if filter.UnderInvestigation {
		query = query.Where("investigation_status = ?", model.InvestigationInProgress)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("id desc").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}

// HasEntry reports whether an entry for the action and resource was
// already appended.
func (r *SecurityLogRepository) HasEntry(action, resourceType string, resourceID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.SecurityLog{}).
		Where("action = ? AND resource_type = ? AND resource_id = ?", action, resourceType, resourceID).
		Count(&count).Error
	return count > 0, err
}

// TransitionInvestigation advances the forward-only investigation fields.
// The WHERE clause on the current status makes concurrent transitions
// resolve to exactly one winner.
func (r *SecurityLogRepository) TransitionInvestigation(entryID uint, from model.InvestigationStatus, updates map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.SecurityLog{}).
		Where("id = ? AND investigation_status = ?", entryID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
