package repository

import (
	"exam_paper_backend/internal/model"

	"gorm.io/gorm"
)

type PaperRepository struct {
	DB *gorm.DB
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{DB: db}
}

func (r *PaperRepository) Create(tx *gorm.DB, paper *model.ExamPaper) error {
	return tx.Create(paper).Error
}

func (r *PaperRepository) FindByID(tx *gorm.DB, id uint) (*model.ExamPaper, error) {
	var paper model.ExamPaper
	err := tx.First(&paper, id).Error
	return &paper, err
}

func (r *PaperRepository) List(page, limit int, status model.PaperStatus) ([]model.ExamPaper, int64, error) {
	var papers []model.ExamPaper
	var total int64
	query := r.DB.Model(&model.ExamPaper{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&papers).Error
	return papers, total, err
}

// TransitionStatus moves the paper from one of the given statuses to the
// target status atomically. Zero rows affected means another caller won
// the race or the paper was not in an allowed state.
func (r *PaperRepository) TransitionStatus(tx *gorm.DB, paperID uint, from []model.PaperStatus, to model.PaperStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&model.ExamPaper{}).
		Where("id = ? AND status IN ?", paperID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaperRepository) SetCurrentVersion(tx *gorm.DB, paperID, versionID uint) error {
	return tx.Model(&model.ExamPaper{}).
		Where("id = ?", paperID).
		Update("current_version_id", versionID).Error
}
