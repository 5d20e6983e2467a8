package service

import (
	"testing"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskClassificationTable(t *testing.T) {
	cases := []struct {
		action   string
		severity model.Severity
		want     model.RiskLevel
	}{
		{"view", model.SeverityLow, model.RiskLow},
		{"approve", model.SeverityLow, model.RiskLow},
		{"submit", model.SeverityMedium, model.RiskMedium},
		{"export_version", model.SeverityLow, model.RiskMedium},
		{"delegate", model.SeverityLow, model.RiskMedium},
		{"restore_version", model.SeverityMedium, model.RiskHigh},
		{"delete", model.SeverityMedium, model.RiskCritical},
		{"delete", model.SeverityCritical, model.RiskCritical},
		{"tamper_detected", model.SeverityLow, model.RiskCritical},
		{"tamper_detected", model.SeverityCritical, model.RiskCritical},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RiskFor(c.action, c.severity),
			"action=%s severity=%s", c.action, c.severity)
	}
}

func TestRecordClassifiesAndFlags(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "actor", model.Author)

	routine, err := env.audit.Record(RecordInput{
		ActorID:      &actor,
		Action:       "view",
		ResourceType: "exam_paper",
		ResourceID:   1,
		Description:  "paper viewed",
		Severity:     model.SeverityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RiskLow, routine.RiskLevel)
	assert.False(t, routine.IsSuspicious)
	assert.Equal(t, model.InvestigationNone, routine.InvestigationStatus)

	// high risk is suspicious on its own
	risky, err := env.audit.Record(RecordInput{
		ActorID:      &actor,
		Action:       "restore_version",
		ResourceType: "exam_paper_version",
		ResourceID:   2,
		Description:  "version restored",
		Severity:     model.SeverityMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, risky.RiskLevel)
	assert.True(t, risky.IsSuspicious)

	// repeated access flags an otherwise low-risk action
	repeated, err := env.audit.Record(RecordInput{
		ActorID:        &actor,
		Action:         "view",
		ResourceType:   "exam_paper",
		ResourceID:     1,
		Description:    "paper viewed again and again",
		Severity:       model.SeverityLow,
		RepeatedAccess: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RiskLow, repeated.RiskLevel)
	assert.True(t, repeated.IsSuspicious)
}

func TestRecordWithoutActor(t *testing.T) {
	env := newTestEnv(t)

	entry, err := env.audit.Record(RecordInput{
		Action:       "approval_overdue",
		ResourceType: "approval_request",
		ResourceID:   7,
		Description:  "deadline passed",
		Severity:     model.SeverityMedium,
	})
	require.NoError(t, err)
	assert.Nil(t, entry.ActorID)
	assert.Nil(t, entry.PaperID)
}

func TestInvestigationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "actor", model.Author)
	admin := env.seedUser(t, "admin", model.Admin)

	entry, err := env.audit.Record(RecordInput{
		ActorID:      &actor,
		Action:       "export_version",
		ResourceType: "exam_paper_version",
		ResourceID:   3,
		Description:  "bulk export",
		Severity:     model.SeverityHigh,
	})
	require.NoError(t, err)

	// resolving before an investigation was opened is illegal
	_, err = env.audit.ResolveInvestigation(entry.ID, "nothing to see")
	assert.ErrorIs(t, err, util.ErrConflict)

	started, err := env.audit.StartInvestigation(entry.ID, admin, "unusual export volume")
	require.NoError(t, err)
	assert.Equal(t, model.InvestigationInProgress, started.InvestigationStatus)
	require.NotNil(t, started.InvestigatorID)
	assert.Equal(t, admin, *started.InvestigatorID)

	// opening twice is illegal
	_, err = env.audit.StartInvestigation(entry.ID, admin, "again")
	assert.ErrorIs(t, err, util.ErrInvestigationStarted)

	// resolution notes are mandatory
	_, err = env.audit.ResolveInvestigation(entry.ID, "  ")
	assert.ErrorIs(t, err, util.ErrValidation)

	resolved, err := env.audit.ResolveInvestigation(entry.ID, "legitimate exam preparation")
	require.NoError(t, err)
	assert.Equal(t, model.InvestigationResolved, resolved.InvestigationStatus)
	assert.Contains(t, resolved.InvestigationNotes, "unusual export volume")
	assert.Contains(t, resolved.InvestigationNotes, "resolved: legitimate exam preparation")

	// resolved is terminal
	_, err = env.audit.StartInvestigation(entry.ID, admin, "reopen")
	assert.ErrorIs(t, err, util.ErrInvestigationStarted)
	_, err = env.audit.ResolveInvestigation(entry.ID, "twice")
	assert.ErrorIs(t, err, util.ErrNotInvestigating)
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "actor", model.Author)
	paperA := uint(11)
	paperB := uint(22)

	seed := []RecordInput{
		{ActorID: &actor, PaperID: &paperA, Action: "view", ResourceType: "exam_paper", Severity: model.SeverityLow},
		{ActorID: &actor, PaperID: &paperA, Action: "export_version", ResourceType: "exam_paper_version", Severity: model.SeverityLow},
		{ActorID: &actor, PaperID: &paperB, Action: "restore_version", ResourceType: "exam_paper_version", Severity: model.SeverityMedium},
		{ActorID: &actor, PaperID: &paperB, Action: "tamper_detected", ResourceType: "exam_paper_version", Severity: model.SeverityCritical},
	}
	for _, in := range seed {
		_, err := env.audit.Record(in)
		require.NoError(t, err)
	}

	byPaper, total, err := env.audit.List(repository.LogFilter{PaperID: paperA}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, byPaper, 2)

	byAction, total, err := env.audit.List(repository.LogFilter{Action: "tamper_detected"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.RiskCritical, byAction[0].RiskLevel)

	suspicious, total, err := env.audit.List(repository.LogFilter{SuspiciousOnly: true}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, e := range suspicious {
		assert.True(t, e.IsSuspicious)
	}

	// newest first
	all, _, err := env.audit.List(repository.LogFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "tamper_detected", all[0].Action)
}

func TestParseLogFilterRejectsBadDates(t *testing.T) {
	_, err := ParseLogFilter(0, "", "", "", "not-a-date", "", false, false)
	assert.ErrorIs(t, err, util.ErrValidation)

	filter, err := ParseLogFilter(5, "view", "low", "", "2026-08-01T00:00:00Z", "2026-08-31T00:00:00Z", true, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, filter.PaperID)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.True(t, filter.SuspiciousOnly)
}
