package repository

import (
	"exam_paper_backend/internal/model"

	"gorm.io/gorm"
)

type ApprovalRepository struct {
	DB *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{DB: db}
}

func (r *ApprovalRepository) Create(tx *gorm.DB, req *model.ApprovalRequest) error {
	return tx.Create(req).Error
}

func (r *ApprovalRepository) FindByID(tx *gorm.DB, id uint) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := tx.First(&req, id).Error
	return &req, err
}

func (r *ApprovalRepository) FindPending(tx *gorm.DB, paperID, versionID uint) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := tx.Where("paper_id = ? AND version_id = ? AND status = ?",
		paperID, versionID, model.ApprovalPending).
		First(&req).Error
	return &req, err
}

func (r *ApprovalRepository) CountPending(tx *gorm.DB, paperID, versionID uint) (int64, error) {
	var n int64
	err := tx.Model(&model.ApprovalRequest{}).
		Where("paper_id = ? AND version_id = ? AND status = ?",
			paperID, versionID, model.ApprovalPending).
		Count(&n).Error
	return n, err
}

// Decide is the compare-and-set at the heart of the approval state
// machine: the row is updated only while still pending, so of two racing
// decisions exactly one sees RowsAffected == 1.
func (r *ApprovalRepository) Decide(tx *gorm.DB, requestID uint, updates map[string]interface{}) (bool, error) {
	res := tx.Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ?", requestID, model.ApprovalPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ApprovalRepository) ListByPaper(paperID uint) ([]model.ApprovalRequest, error) {
	var reqs []model.ApprovalRequest
	err := r.DB.Where("paper_id = ?", paperID).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

func (r *ApprovalRepository) ListOverdue(tx *gorm.DB) ([]model.ApprovalRequest, error) {
	var reqs []model.ApprovalRequest
	err := tx.Where("status = ? AND approval_deadline IS NOT NULL AND approval_deadline < CURRENT_TIMESTAMP",
		model.ApprovalPending).
		Find(&reqs).Error
	return reqs, err
}
