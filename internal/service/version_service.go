package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"

	"gorm.io/gorm"
)

// VersionService owns the immutable, checksummed version history of a
// paper. Versions are only ever inserted; every correction, restore or
// resubmission allocates the next version number.
type VersionService struct {
	Repo *repository.VersionRepository
	DB   *gorm.DB
}

func NewVersionService(repo *repository.VersionRepository, db *gorm.DB) *VersionService {
	return &VersionService{Repo: repo, DB: db}
}

// Checksum computes the SHA-256 hex digest over content bytes.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CreateVersion allocates version number max+1 for the paper and inserts
// the snapshot with status pending. On a version-number race the insert
// fails with ErrVersionNumberRace; one retry with a re-read max is
// attempted before giving the conflict back to the caller.
func (s *VersionService) CreateVersion(tx *gorm.DB, paperID uint, content []byte, creatorID uint, changeSummary string) (*model.ExamPaperVersion, error) {
	for attempt := 0; attempt < 2; attempt++ {
		max, err := s.Repo.MaxVersionNumber(tx, paperID)
		if err != nil {
			return nil, err
		}

		v := &model.ExamPaperVersion{
			PaperID:       paperID,
			VersionNumber: max + 1,
			Content:       content,
			Checksum:      Checksum(content),
			Status:        model.VersionPending,
			CreatorID:     creatorID,
			ChangeSummary: changeSummary,
		}
		err = s.Repo.Create(tx, v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, util.ErrConflict) {
			return nil, err
		}
	}
	return nil, util.ErrVersionNumberRace
}

// SetCurrent points the paper at one of its own versions.
func (s *VersionService) SetCurrent(tx *gorm.DB, paperID, versionID uint) error {
	if _, err := s.Repo.FindByPaperAndID(tx, paperID, versionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrVersionNotFound
		}
		return err
	}
	return tx.Model(&model.ExamPaper{}).
		Where("id = ?", paperID).
		Update("current_version_id", versionID).Error
}

// Verify recomputes the checksum over the stored content and compares it
// with the stored one. A mismatch returns (false, nil), never an error —
// escalation is the caller's decision.
func (s *VersionService) Verify(versionID uint) (bool, error) {
	v, err := s.Repo.FindByID(s.DB, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, util.ErrVersionNotFound
		}
		return false, err
	}
	return Checksum(v.Content) == v.Checksum, nil
}

// VerifyTx is Verify inside an enclosing transaction.
func (s *VersionService) VerifyTx(tx *gorm.DB, versionID uint) (bool, error) {
	v, err := s.Repo.FindByID(tx, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, util.ErrVersionNotFound
		}
		return false, err
	}
	return Checksum(v.Content) == v.Checksum, nil
}

// Restore creates a new version whose content is a byte-identical copy
// of the target version. History is never rewritten; the copy gets the
// next version number and a fresh (necessarily equal) checksum.
func (s *VersionService) Restore(tx *gorm.DB, paperID, versionID, actorID uint) (*model.ExamPaperVersion, error) {
	target, err := s.Repo.FindByPaperAndID(tx, paperID, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrVersionNotFound
		}
		return nil, err
	}

	content := make([]byte, len(target.Content))
	copy(content, target.Content)

	summary := fmt.Sprintf("restored from v%d", target.VersionNumber)
	return s.CreateVersion(tx, paperID, content, actorID, summary)
}

// FieldChange is one differing field between two versions.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// VersionDiff is the result of comparing two versions of the same paper.
type VersionDiff struct {
	PaperID      uint          `json:"paperId"`
	FromVersion  int           `json:"fromVersion"`
	ToVersion    int           `json:"toVersion"`
	ContentEqual bool          `json:"contentEqual"`
	Changes      []FieldChange `json:"changes"`
}

// Compare produces a field-level diff between two versions of one paper.
// Pure read, no side effects.
func (s *VersionService) Compare(paperID, fromID, toID uint) (*VersionDiff, error) {
	from, err := s.Repo.FindByPaperAndID(s.DB, paperID, fromID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrVersionNotFound
		}
		return nil, err
	}
	to, err := s.Repo.FindByPaperAndID(s.DB, paperID, toID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrVersionNotFound
		}
		return nil, err
	}

	diff := &VersionDiff{
		PaperID:      paperID,
		FromVersion:  from.VersionNumber,
		ToVersion:    to.VersionNumber,
		ContentEqual: bytes.Equal(from.Content, to.Content),
	}

	add := func(field, old, new string) {
		if old != new {
			diff.Changes = append(diff.Changes, FieldChange{Field: field, Old: old, New: new})
		}
	}
	add("version_number", fmt.Sprintf("%d", from.VersionNumber), fmt.Sprintf("%d", to.VersionNumber))
	add("checksum", from.Checksum, to.Checksum)
	add("status", string(from.Status), string(to.Status))
	add("change_summary", from.ChangeSummary, to.ChangeSummary)
	add("creator_id", fmt.Sprintf("%d", from.CreatorID), fmt.Sprintf("%d", to.CreatorID))
	add("content_size", fmt.Sprintf("%d", len(from.Content)), fmt.Sprintf("%d", len(to.Content)))

	return diff, nil
}

// History lists all versions of a paper, newest first.
func (s *VersionService) History(paperID uint) ([]model.ExamPaperVersion, error) {
	return s.Repo.ListByPaper(paperID)
}

// Get returns one version of a paper.
func (s *VersionService) Get(paperID, versionID uint) (*model.ExamPaperVersion, error) {
	v, err := s.Repo.FindByPaperAndID(s.DB, paperID, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}
