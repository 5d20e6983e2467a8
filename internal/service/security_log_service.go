package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"
	"exam_paper_backend/pkg/logger"
	"exam_paper_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SecurityLogService is the append-only audit trail of sensitive actions.
// Record never fails on business grounds; risk classification is a
// deterministic table over (action, severity), and the repeated-access
// heuristic is supplied by the caller, not decided here.
type SecurityLogService struct {
	Repo *repository.SecurityLogRepository
}

func NewSecurityLogService(repo *repository.SecurityLogRepository) *SecurityLogService {
	return &SecurityLogService{Repo: repo}
}

// RecordInput carries one auditable action.
type RecordInput struct {
	ActorID      *uint // nil means the system itself acted
	PaperID      *uint
	Action       string
	ResourceType string
	ResourceID   uint
	Description  string
	Severity     model.Severity
	// RepeatedAccess is the caller-supplied suspicion heuristic flag.
	RepeatedAccess bool
}

var severityRank = map[model.Severity]int{
	model.SeverityLow:      0,
	model.SeverityMedium:   1,
	model.SeverityHigh:     2,
	model.SeverityCritical: 3,
}

var riskByRank = []model.RiskLevel{
	model.RiskLow,
	model.RiskMedium,
	model.RiskHigh,
	model.RiskCritical,
}

// actionBump escalates risk for actions that move or expose protected
// state beyond the ordinary editorial flow. Unknown actions get no bump,
// so risk defaults to severity.
var actionBump = map[string]int{
	"delegate":        1,
	"restore_version": 1,
	"export_version":  1,
	"delete":          2,
	"tamper_detected": 3,
}

// RiskFor is the deterministic classification table keyed by
// (action, severity).
func RiskFor(action string, severity model.Severity) model.RiskLevel {
	rank := severityRank[severity] + actionBump[action]
	if rank > 3 {
		rank = 3
	}
	return riskByRank[rank]
}

// Record appends one entry. It always succeeds unless storage itself
// fails; entries are never mutated afterwards except the investigation
// fields.
func (s *SecurityLogService) Record(in RecordInput) (*model.SecurityLog, error) {
	risk := RiskFor(in.Action, in.Severity)

	entry := &model.SecurityLog{
		PaperID:             in.PaperID,
		ActorID:             in.ActorID,
		Action:              in.Action,
		ResourceType:        in.ResourceType,
		ResourceID:          in.ResourceID,
		Description:         in.Description,
		Severity:            in.Severity,
		RiskLevel:           risk,
		IsSuspicious:        risk == model.RiskHigh || risk == model.RiskCritical || in.RepeatedAccess,
		InvestigationStatus: model.InvestigationNone,
	}

	if err := s.Repo.Create(entry); err != nil {
		logger.Log.Error("failed to append security log entry",
			zap.String("action", in.Action), zap.Error(err))
		return nil, err
	}

	monitoring.SecurityEvents.WithLabelValues(in.Action, string(risk)).Inc()
	if entry.IsSuspicious {
		monitoring.SuspiciousEvents.Inc()
		logger.Log.Warn("suspicious activity recorded",
			zap.Uint("entry_id", entry.ID),
			zap.String("action", in.Action),
			zap.String("risk_level", string(risk)))
	}
	return entry, nil
}

// StartInvestigation moves an entry from none to investigating.
func (s *SecurityLogService) StartInvestigation(entryID, investigatorID uint, notes string) (*model.SecurityLog, error) {
	if _, err := s.get(entryID); err != nil {
		return nil, err
	}

	ok, err := s.Repo.TransitionInvestigation(entryID, model.InvestigationNone, map[string]interface{}{
		"investigation_status": model.InvestigationInProgress,
		"investigator_id":      investigatorID,
		"investigation_notes":  notes,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrInvestigationStarted
	}
	return s.get(entryID)
}

// ResolveInvestigation moves an entry from investigating to resolved.
func (s *SecurityLogService) ResolveInvestigation(entryID uint, resolutionNotes string) (*model.SecurityLog, error) {
	if strings.TrimSpace(resolutionNotes) == "" {
		return nil, fmt.Errorf("resolution notes are required: %w", util.ErrValidation)
	}
	entry, err := s.get(entryID)
	if err != nil {
		return nil, err
	}

	notes := entry.InvestigationNotes
	if notes != "" {
		notes += "\n"
	}
	notes += "resolved: " + resolutionNotes

	ok, err := s.Repo.TransitionInvestigation(entryID, model.InvestigationInProgress, map[string]interface{}{
		"investigation_status": model.InvestigationResolved,
		"investigation_notes":  notes,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotInvestigating
	}
	return s.get(entryID)
}

func (s *SecurityLogService) get(entryID uint) (*model.SecurityLog, error) {
	entry, err := s.Repo.FindByID(entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLogEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Get returns one entry.
func (s *SecurityLogService) Get(entryID uint) (*model.SecurityLog, error) {
	return s.get(entryID)
}

// List returns filtered entries, newest first.
func (s *SecurityLogService) List(filter repository.LogFilter, page, limit int) ([]model.SecurityLog, int64, error) {
	return s.Repo.List(filter, page, limit)
}

// ParseLogFilter builds a LogFilter from raw query values; bad dates are
// a validation error rather than silently ignored.
func ParseLogFilter(paperID uint, action, severity, risk, from, to string, suspiciousOnly, underInvestigation bool) (repository.LogFilter, error) {
	filter := repository.LogFilter{
		PaperID:            paperID,
		Action:             action,
		Severity:           model.Severity(severity),
		RiskLevel:          model.RiskLevel(risk),
		SuspiciousOnly:     suspiciousOnly,
		UnderInvestigation: underInvestigation,
	}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, fmt.Errorf("invalid from date: %w", util.ErrValidation)
		}
		filter.From = &t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, fmt.Errorf("invalid to date: %w", util.ErrValidation)
		}
		filter.To = &t
	}
	return filter, nil
}
