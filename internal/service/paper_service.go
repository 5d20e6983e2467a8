package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"
	"exam_paper_backend/pkg/logger"
	"exam_paper_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// repeated-access window for the export suspicion heuristic.
const (
	exportWindow    = 10 * time.Minute
	exportThreshold = 5
)

// PaperService is the lifecycle coordinator. Every public operation runs
// one transaction across the paper, its versions and its approval
// requests, writes exactly one security-log entry whether it succeeded
// or failed, and emits an outward event on success.
type PaperService struct {
	DB          *gorm.DB
	PaperRepo   *repository.PaperRepository
	Versions    *VersionService
	Approvals   *ApprovalService
	SecurityLog *SecurityLogService
	Events      EventPublisher

	exportMu      sync.Mutex
	exportHistory map[uint][]time.Time
}

func NewPaperService(
	paperRepo *repository.PaperRepository,
	versions *VersionService,
	approvals *ApprovalService,
	securityLog *SecurityLogService,
	events EventPublisher,
	db *gorm.DB,
) *PaperService {
	return &PaperService{
		DB:            db,
		PaperRepo:     paperRepo,
		Versions:      versions,
		Approvals:     approvals,
		SecurityLog:   securityLog,
		Events:        events,
		exportHistory: make(map[uint][]time.Time),
	}
}

func (s *PaperService) loadPaper(tx *gorm.DB, paperID uint) (*model.ExamPaper, error) {
	paper, err := s.PaperRepo.FindByID(tx, paperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPaperNotFound
		}
		return nil, err
	}
	return paper, nil
}

// finishAudit writes the single audit entry for one coordinator
// operation. Failures are recorded as failures; a checksum mismatch is
// recorded as tamper_detected at critical severity.
func (s *PaperService) finishAudit(action string, actorID uint, paperID uint, resourceType string, resourceID uint, description string, severity model.Severity, repeated bool, opErr error) {
	in := RecordInput{
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Description:    description,
		Severity:       severity,
		RepeatedAccess: repeated,
	}
	if actorID != 0 {
		in.ActorID = &actorID
	}
	if paperID != 0 {
		in.PaperID = &paperID
	}

	if opErr != nil {
		switch {
		case errors.Is(opErr, util.ErrIntegrity):
			in.Action = "tamper_detected"
			in.Severity = model.SeverityCritical
			in.Description = fmt.Sprintf("checksum mismatch detected during %s on paper %d", action, paperID)
		case errors.Is(opErr, util.ErrPermissionDenied):
			in.Severity = model.SeverityHigh
			in.Description = fmt.Sprintf("%s denied: %v", action, opErr)
		default:
			in.Severity = model.SeverityMedium
			in.Description = fmt.Sprintf("%s failed: %v", action, opErr)
		}
	}

	// The audit append is independent of the operation's transaction;
	// failure entries must survive the rollback.
	if _, err := s.SecurityLog.Record(in); err != nil {
		logger.Log.Error("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *PaperService) emit(eventType string, paperID, versionID, actorID uint) {
	s.Events.Publish(context.Background(), PaperEvent{
		EventType: eventType,
		PaperID:   paperID,
		VersionID: versionID,
		ActorID:   actorID,
		Timestamp: time.Now(),
	})
}

// CreatePaperInput is the payload for creating a paper with its first
// content snapshot.
type CreatePaperInput struct {
	Code               string
	Title              string
	ReviewerID         uint
	Content            []byte
	SubmissionDeadline *time.Time
}

// CreatePaper creates a paper in draft with version 1 as its current
// version.
func (s *PaperService) CreatePaper(in CreatePaperInput, creatorID uint) (paper *model.ExamPaper, err error) {
	defer func() {
		s.finishAudit("create_paper", creatorID, paperIDOf(paper), "exam_paper", paperIDOf(paper),
			fmt.Sprintf("paper %q created", in.Code), model.SeverityLow, false, err)
	}()

	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("code and title are required: %w", util.ErrValidation)
	}
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("initial content is required: %w", util.ErrValidation)
	}
	if in.ReviewerID == 0 {
		return nil, fmt.Errorf("reviewer is required: %w", util.ErrValidation)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p := &model.ExamPaper{
			Code:               in.Code,
			Title:              in.Title,
			Status:             model.PaperDraft,
			CreatorID:          creatorID,
			ReviewerID:         in.ReviewerID,
			SubmissionDeadline: in.SubmissionDeadline,
		}
		if err := s.PaperRepo.Create(tx, p); err != nil {
			return err
		}
		v, err := s.Versions.CreateVersion(tx, p.ID, in.Content, creatorID, "initial version")
		if err != nil {
			return err
		}
		if err := s.PaperRepo.SetCurrentVersion(tx, p.ID, v.ID); err != nil {
			return err
		}
		p.CurrentVersionID = v.ID
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("paper_created", paper.ID, paper.CurrentVersionID, creatorID)
	return paper, nil
}

// Submit moves a draft or rejected paper into submitted and opens the
// approval request for its current version. If the current version was
// already decided (a resubmission), a fresh version is cut first.
func (s *PaperService) Submit(paperID, actorID uint, deadline *time.Time, priority model.ApprovalPriority) (paper *model.ExamPaper, err error) {
	defer func() {
		s.finishAudit("submit", actorID, paperID, "exam_paper", paperID,
			fmt.Sprintf("paper %d submitted for approval", paperID), model.SeverityLow, false, err)
	}()

	if priority == "" {
		priority = model.PriorityMedium
	}

	var versionID uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.CreatorID != actorID {
			return util.ErrNotCreator
		}
		if p.Status != model.PaperDraft && p.Status != model.PaperRejected {
			return util.ErrAlreadySubmitted
		}

		current, err := s.Versions.Repo.FindByID(tx, p.CurrentVersionID)
		if err != nil {
			return util.ErrVersionNotFound
		}

		// Resubmission after a decision keeps history by cutting N+1.
		if current.Status != model.VersionPending {
			content := make([]byte, len(current.Content))
			copy(content, current.Content)
			next, err := s.Versions.CreateVersion(tx, p.ID, content, actorID,
				fmt.Sprintf("resubmission of v%d", current.VersionNumber))
			if err != nil {
				return err
			}
			if err := s.PaperRepo.SetCurrentVersion(tx, p.ID, next.ID); err != nil {
				return err
			}
			current = next
		}

		// The status CAS is what makes two racing submits resolve to one
		// winner, which in turn keeps at most one pending request per
		// (paper, version).
		ok, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperDraft, model.PaperRejected},
			model.PaperSubmitted,
			map[string]interface{}{"rejection_reason": ""})
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrAlreadySubmitted
		}

		pending, err := s.Approvals.Repo.CountPending(tx, p.ID, current.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return util.ErrAlreadySubmitted
		}

		req := &model.ApprovalRequest{
			PaperID:          p.ID,
			VersionID:        current.ID,
			ApproverID:       p.ReviewerID,
			Status:           model.ApprovalPending,
			Priority:         priority,
			ApprovalDeadline: deadline,
		}
		if err := s.Approvals.Repo.Create(tx, req); err != nil {
			return err
		}

		p.Status = model.PaperSubmitted
		p.RejectionReason = ""
		p.CurrentVersionID = current.ID
		versionID = current.ID
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("paper_submitted", paper.ID, versionID, actorID)
	return paper, nil
}

// Approve records the approval decision on the current version's pending
// request and moves the paper to approved. A checksum mismatch on the
// current version aborts with an integrity error before any mutation.
func (s *PaperService) Approve(paperID, approverID uint, feedback string, sign bool) (paper *model.ExamPaper, err error) {
	defer func() {
		s.finishAudit("approve", approverID, paperID, "exam_paper", paperID,
			fmt.Sprintf("paper %d approved", paperID), model.SeverityLow, false, err)
	}()

	var versionID uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.Status != model.PaperSubmitted {
			return util.ErrNotAwaitingApproval
		}

		ok, err := s.Versions.VerifyTx(tx, p.CurrentVersionID)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrIntegrity
		}

		req, err := s.Approvals.PendingFor(tx, p.ID, p.CurrentVersionID)
		if err != nil {
			return err
		}
		if _, err := s.Approvals.Approve(tx, req.ID, approverID, feedback, sign); err != nil {
			return err
		}

		now := time.Now()
		if err := s.Versions.Repo.UpdateDecision(tx, p.CurrentVersionID, map[string]interface{}{
			"status":      model.VersionApproved,
			"approver_id": approverID,
			"approved_at": &now,
		}); err != nil {
			return err
		}

		moved, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperSubmitted}, model.PaperApproved, nil)
		if err != nil {
			return err
		}
		if !moved {
			return util.ErrNotAwaitingApproval
		}

		p.Status = model.PaperApproved
		versionID = p.CurrentVersionID
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ApprovalDecisions.WithLabelValues("approved").Inc()
	s.emit("paper_approved", paper.ID, versionID, approverID)
	return paper, nil
}

// Reject records the rejection with its reason and moves the paper to
// rejected; the author may cut a new version and resubmit.
func (s *PaperService) Reject(paperID, approverID uint, reason string) (paper *model.ExamPaper, err error) {
	defer func() {
		s.finishAudit("reject", approverID, paperID, "exam_paper", paperID,
			fmt.Sprintf("paper %d rejected", paperID), model.SeverityLow, false, err)
	}()

	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejection reason is required: %w", util.ErrValidation)
	}

	var versionID uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.Status != model.PaperSubmitted {
			return util.ErrNotAwaitingApproval
		}

		req, err := s.Approvals.PendingFor(tx, p.ID, p.CurrentVersionID)
		if err != nil {
			return err
		}
		if _, err := s.Approvals.Reject(tx, req.ID, approverID, reason); err != nil {
			return err
		}

		if err := s.Versions.Repo.UpdateDecision(tx, p.CurrentVersionID, map[string]interface{}{
			"status": model.VersionRejected,
		}); err != nil {
			return err
		}

		moved, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperSubmitted}, model.PaperRejected,
			map[string]interface{}{"rejection_reason": reason})
		if err != nil {
			return err
		}
		if !moved {
			return util.ErrNotAwaitingApproval
		}

		p.Status = model.PaperRejected
		p.RejectionReason = reason
		versionID = p.CurrentVersionID
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ApprovalDecisions.WithLabelValues("rejected").Inc()
	s.emit("paper_rejected", paper.ID, versionID, approverID)
	return paper, nil
}

// Publish releases an approved paper. Publishing an unapproved paper is
// illegal; a new version plus a full approval cycle is the only way to
// change a published paper.
func (s *PaperService) Publish(paperID, actorID uint) (paper *model.ExamPaper, err error) {
	defer func() {
		s.finishAudit("publish", actorID, paperID, "exam_paper", paperID,
			fmt.Sprintf("paper %d published", paperID), model.SeverityLow, false, err)
	}()

	var versionID uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.CreatorID != actorID {
			return util.ErrNotCreator
		}
		if p.Status != model.PaperApproved {
			return util.ErrNotApproved
		}

		ok, err := s.Versions.VerifyTx(tx, p.CurrentVersionID)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrIntegrity
		}

		now := time.Now()
		moved, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperApproved}, model.PaperPublished,
			map[string]interface{}{"published_at": &now})
		if err != nil {
			return err
		}
		if !moved {
			return util.ErrNotApproved
		}

		p.Status = model.PaperPublished
		p.PublishedAt = &now
		versionID = p.CurrentVersionID
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("paper_published", paper.ID, versionID, actorID)
	return paper, nil
}

// DelegateApproval hands the pending decision on the current version to
// another approver.
func (s *PaperService) DelegateApproval(paperID, fromApprover, toApprover uint, reason string) (next *model.ApprovalRequest, err error) {
	defer func() {
		s.finishAudit("delegate", fromApprover, paperID, "approval_request", requestIDOf(next),
			fmt.Sprintf("approval of paper %d delegated to user %d", paperID, toApprover),
			model.SeverityLow, false, err)
	}()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.Status != model.PaperSubmitted {
			return util.ErrNotAwaitingApproval
		}

		req, err := s.Approvals.PendingFor(tx, p.ID, p.CurrentVersionID)
		if err != nil {
			return err
		}
		spawned, err := s.Approvals.Delegate(tx, req.ID, fromApprover, toApprover, reason)
		if err != nil {
			return err
		}
		next = spawned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("approval_delegated", paperID, next.VersionID, fromApprover)
	return next, nil
}

// ExtendDeadline moves the advisory approval deadline of the pending
// request. Only the currently assigned approver may extend.
func (s *PaperService) ExtendDeadline(paperID, actorID uint, newDeadline time.Time, reason string) (req *model.ApprovalRequest, err error) {
	defer func() {
		s.finishAudit("extend_deadline", actorID, paperID, "approval_request", requestIDOf(req),
			fmt.Sprintf("approval deadline of paper %d extended to %s", paperID, newDeadline.Format(time.RFC3339)),
			model.SeverityLow, false, err)
	}()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.Status != model.PaperSubmitted {
			return util.ErrNotAwaitingApproval
		}

		pending, err := s.Approvals.PendingFor(tx, p.ID, p.CurrentVersionID)
		if err != nil {
			return err
		}
		if pending.ApproverID != actorID {
			return util.ErrNotApprover
		}

		updated, err := s.Approvals.ExtendDeadline(tx, pending.ID, newDeadline, reason)
		if err != nil {
			return err
		}
		req = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("deadline_extended", paperID, req.VersionID, actorID)
	return req, nil
}

// RestoreVersion cuts a new version that is a byte-identical copy of an
// older one and makes it current. The paper returns to draft and must go
// through approval again.
func (s *PaperService) RestoreVersion(paperID, versionID, actorID uint) (restored *model.ExamPaperVersion, err error) {
	defer func() {
		s.finishAudit("restore_version", actorID, paperID, "exam_paper_version", versionID,
			fmt.Sprintf("paper %d restored from version %d", paperID, versionID),
			model.SeverityMedium, false, err)
	}()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.CreatorID != actorID {
			return util.ErrNotCreator
		}
		if p.Status == model.PaperSubmitted {
			return fmt.Errorf("cannot restore while awaiting approval: %w", util.ErrConflict)
		}

		v, err := s.Versions.Restore(tx, paperID, versionID, actorID)
		if err != nil {
			return err
		}
		if err := s.PaperRepo.SetCurrentVersion(tx, p.ID, v.ID); err != nil {
			return err
		}
		if _, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperDraft, model.PaperRejected, model.PaperApproved, model.PaperPublished},
			model.PaperDraft, nil); err != nil {
			return err
		}
		restored = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("version_restored", paperID, restored.ID, actorID)
	return restored, nil
}

// NewDraftVersion cuts a fresh version with new content and makes it
// current; the paper drops back to draft until resubmitted.
func (s *PaperService) NewDraftVersion(paperID, actorID uint, content []byte, changeSummary string) (created *model.ExamPaperVersion, err error) {
	defer func() {
		s.finishAudit("create_version", actorID, paperID, "exam_paper_version", versionIDOf(created),
			fmt.Sprintf("new version created for paper %d", paperID), model.SeverityLow, false, err)
	}()

	if len(content) == 0 {
		return nil, fmt.Errorf("content is required: %w", util.ErrValidation)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPaper(tx, paperID)
		if err != nil {
			return err
		}
		if p.CreatorID != actorID {
			return util.ErrNotCreator
		}
		if p.Status == model.PaperSubmitted {
			return fmt.Errorf("cannot edit while awaiting approval: %w", util.ErrConflict)
		}

		v, err := s.Versions.CreateVersion(tx, p.ID, content, actorID, changeSummary)
		if err != nil {
			return err
		}
		if err := s.PaperRepo.SetCurrentVersion(tx, p.ID, v.ID); err != nil {
			return err
		}
		if _, err := s.PaperRepo.TransitionStatus(tx, p.ID,
			[]model.PaperStatus{model.PaperDraft, model.PaperRejected, model.PaperApproved, model.PaperPublished},
			model.PaperDraft, nil); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit("version_created", paperID, created.ID, actorID)
	return created, nil
}

// CompareVersions is a read-only field diff, audit-logged because version
// content exposure is a sensitive read.
func (s *PaperService) CompareVersions(paperID, fromID, toID, actorID uint) (diff *VersionDiff, err error) {
	defer func() {
		s.finishAudit("compare_versions", actorID, paperID, "exam_paper_version", toID,
			fmt.Sprintf("versions %d and %d of paper %d compared", fromID, toID, paperID),
			model.SeverityLow, false, err)
	}()

	if _, err = s.loadPaper(s.DB, paperID); err != nil {
		return nil, err
	}
	return s.Versions.Compare(paperID, fromID, toID)
}

// ExportVersion hands out a version's raw content for download. Exports
// are the classic repeated-access signal, so the coordinator feeds its
// own frequency heuristic into the audit entry.
func (s *PaperService) ExportVersion(paperID, versionID, actorID uint) (v *model.ExamPaperVersion, err error) {
	repeated := s.noteExport(actorID)
	defer func() {
		s.finishAudit("export_version", actorID, paperID, "exam_paper_version", versionID,
			fmt.Sprintf("version %d of paper %d exported", versionID, paperID),
			model.SeverityLow, repeated, err)
	}()

	if _, err = s.loadPaper(s.DB, paperID); err != nil {
		return nil, err
	}
	version, err := s.Versions.Get(paperID, versionID)
	if err != nil {
		return nil, err
	}
	if Checksum(version.Content) != version.Checksum {
		return nil, util.ErrIntegrity
	}
	return version, nil
}

// noteExport records one export by the actor and reports whether the
// actor exceeded the repeated-access threshold inside the window.
func (s *PaperService) noteExport(actorID uint) bool {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-exportWindow)
	recent := s.exportHistory[actorID][:0]
	for _, t := range s.exportHistory[actorID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	s.exportHistory[actorID] = recent
	return len(recent) > exportThreshold
}

// GetPaper returns one paper.
func (s *PaperService) GetPaper(paperID uint) (*model.ExamPaper, error) {
	return s.loadPaper(s.DB, paperID)
}

// ListPapers returns a page of papers, optionally filtered by status.
func (s *PaperService) ListPapers(page, limit int, status model.PaperStatus) ([]model.ExamPaper, int64, error) {
	return s.PaperRepo.List(page, limit, status)
}

// SweepOverdueApprovals records an audit entry for every pending request
// whose deadline passed. The trail itself is the marker of what was
// already noticed, so a restart never skips requests that went overdue
// while the process was down. Deadlines are advisory: nothing
// transitions, the trail just notices.
func (s *PaperService) SweepOverdueApprovals() error {
	overdue, err := s.Approvals.Repo.ListOverdue(s.DB)
	if err != nil {
		return err
	}
	for _, req := range overdue {
		noticed, err := s.SecurityLog.Repo.HasEntry("approval_overdue", "approval_request", req.ID)
		if err != nil {
			return err
		}
		if noticed {
			continue
		}
		paperID := req.PaperID
		if _, err := s.SecurityLog.Record(RecordInput{
			PaperID:      &paperID,
			Action:       "approval_overdue",
			ResourceType: "approval_request",
			ResourceID:   req.ID,
			Description:  fmt.Sprintf("approval request %d for paper %d passed its deadline", req.ID, req.PaperID),
			Severity:     model.SeverityMedium,
		}); err != nil {
			return err
		}
	}
	return nil
}

func paperIDOf(p *model.ExamPaper) uint {
	if p == nil {
		return 0
	}
	return p.ID
}

func versionIDOf(v *model.ExamPaperVersion) uint {
	if v == nil {
		return 0
	}
	return v.ID
}

func requestIDOf(r *model.ApprovalRequest) uint {
	if r == nil {
		return 0
	}
	return r.ID
}
