package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"

	"gorm.io/gorm"
)

// ApprovalService runs the per-request state machine:
// pending -> approved | rejected | delegated, with extend keeping the
// request pending. Every terminal transition is a compare-and-set on the
// status column, so concurrent decisions resolve to one winner.
type ApprovalService struct {
	Repo  *repository.ApprovalRepository
	Users *repository.UserRepository
	DB    *gorm.DB
}

func NewApprovalService(repo *repository.ApprovalRepository, users *repository.UserRepository, db *gorm.DB) *ApprovalService {
	return &ApprovalService{Repo: repo, Users: users, DB: db}
}

func (s *ApprovalService) load(tx *gorm.DB, requestID uint) (*model.ApprovalRequest, error) {
	req, err := s.Repo.FindByID(tx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// Approve records the terminal approve decision. The digital signature,
// when requested, is a property of the decision: flag plus timestamp
// captured at the moment the compare-and-set wins.
func (s *ApprovalService) Approve(tx *gorm.DB, requestID, approverID uint, feedback string, sign bool) (*model.ApprovalRequest, error) {
	req, err := s.load(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ApproverID != approverID {
		return nil, util.ErrNotApprover
	}

	updates := map[string]interface{}{
		"status":   model.ApprovalApproved,
		"feedback": feedback,
	}
	if sign {
		now := time.Now()
		updates["is_signed"] = true
		updates["signed_at"] = &now
	}

	ok, err := s.Repo.Decide(tx, requestID, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrAlreadyDecided
	}
	return s.load(tx, requestID)
}

// Reject records the terminal reject decision. A non-empty reason is
// required; it travels back to the author as external feedback.
func (s *ApprovalService) Reject(tx *gorm.DB, requestID, approverID uint, reason string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejection reason is required: %w", util.ErrValidation)
	}
	req, err := s.load(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ApproverID != approverID {
		return nil, util.ErrNotApprover
	}

	ok, err := s.Repo.Decide(tx, requestID, map[string]interface{}{
		"status":   model.ApprovalRejected,
		"feedback": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrAlreadyDecided
	}
	return s.load(tx, requestID)
}

// Delegate hands the pending decision to another approver. The original
// request becomes terminal (delegated) and a fresh pending request is
// spawned for the delegate, preserving priority and deadline. History is
// never deleted.
func (s *ApprovalService) Delegate(tx *gorm.DB, requestID, fromApprover, toApprover uint, reason string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("delegation reason is required: %w", util.ErrValidation)
	}
	if toApprover == 0 || toApprover == fromApprover {
		return nil, fmt.Errorf("invalid delegate: %w", util.ErrValidation)
	}
	delegate, err := s.Users.FindByIDTx(tx, toApprover)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delegate does not exist: %w", util.ErrValidation)
		}
		return nil, err
	}
	if delegate.Role != model.Approver && delegate.Role != model.Admin {
		return nil, fmt.Errorf("delegate is not an approver: %w", util.ErrValidation)
	}
	req, err := s.load(tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ApproverID != fromApprover {
		return nil, util.ErrNotApprover
	}

	ok, err := s.Repo.Decide(tx, requestID, map[string]interface{}{
		"status":            model.ApprovalDelegated,
		"delegated_to":      toApprover,
		"delegation_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrAlreadyDecided
	}

	next := &model.ApprovalRequest{
		PaperID:          req.PaperID,
		VersionID:        req.VersionID,
		ApproverID:       toApprover,
		Status:           model.ApprovalPending,
		Priority:         req.Priority,
		ApprovalDeadline: req.ApprovalDeadline,
	}
	if err := s.Repo.Create(tx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// ExtendDeadline moves the advisory deadline while leaving the request
// pending. The reason is appended to internal comments.
func (s *ApprovalService) ExtendDeadline(tx *gorm.DB, requestID uint, newDeadline time.Time, reason string) (*model.ApprovalRequest, error) {
	if strings.TrimSpace(reason) == "" || newDeadline.IsZero() {
		return nil, fmt.Errorf("extension reason and new deadline are required: %w", util.ErrValidation)
	}
	req, err := s.load(tx, requestID)
	if err != nil {
		return nil, err
	}

	comment := "deadline extended: " + reason
	if req.Comments != "" {
		comment = req.Comments + "\n" + comment
	}

	// status stays pending; the CAS only guards against the request
	// having been decided concurrently.
	ok, err := s.Repo.Decide(tx, requestID, map[string]interface{}{
		"approval_deadline": newDeadline,
		"comments":          comment,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrAlreadyDecided
	}
	return s.load(tx, requestID)
}

// PendingFor finds the single pending request of a paper version.
func (s *ApprovalService) PendingFor(tx *gorm.DB, paperID, versionID uint) (*model.ApprovalRequest, error) {
	req, err := s.Repo.FindPending(tx, paperID, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListByPaper returns the full approval history of a paper.
func (s *ApprovalService) ListByPaper(paperID uint) ([]model.ApprovalRequest, error) {
	return s.Repo.ListByPaper(paperID)
}
