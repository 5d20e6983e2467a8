package repository

import (
	"errors"
	"strings"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/util"

	"gorm.io/gorm"
)

type VersionRepository struct {
	DB *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{DB: db}
}

// Create inserts a version snapshot. The unique index on
// (paper_id, version_number) is the guard against two writers claiming
// the same slot; a duplicate-key failure surfaces as ErrVersionNumberRace
// and the caller retries with a fresh number.
func (r *VersionRepository) Create(tx *gorm.DB, v *model.ExamPaperVersion) error {
	err := tx.Create(v).Error
	if err != nil && isDuplicateKey(err) {
		return util.ErrVersionNumberRace
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL and SQLite report duplicate keys differently; not every
	// driver translates to gorm.ErrDuplicatedKey.
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func (r *VersionRepository) FindByID(tx *gorm.DB, id uint) (*model.ExamPaperVersion, error) {
	var v model.ExamPaperVersion
	err := tx.First(&v, id).Error
	return &v, err
}

func (r *VersionRepository) FindByPaperAndID(tx *gorm.DB, paperID, versionID uint) (*model.ExamPaperVersion, error) {
	var v model.ExamPaperVersion
	err := tx.Where("id = ? AND paper_id = ?", versionID, paperID).First(&v).Error
	return &v, err
}

func (r *VersionRepository) MaxVersionNumber(tx *gorm.DB, paperID uint) (int, error) {
	var max int
	err := tx.Model(&model.ExamPaperVersion{}).
		Where("paper_id = ?", paperID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&max).Error
	return max, err
}

func (r *VersionRepository) ListByPaper(paperID uint) ([]model.ExamPaperVersion, error) {
	var versions []model.ExamPaperVersion
	err := r.DB.Where("paper_id = ?", paperID).
		Order("version_number desc").
		Find(&versions).Error
	return versions, err
}

func (r *VersionRepository) UpdateDecision(tx *gorm.DB, versionID uint, updates map[string]interface{}) error {
	return tx.Model(&model.ExamPaperVersion{}).
		Where("id = ?", versionID).
		Updates(updates).Error
}
