package service

import (
	"context"
	"sync"
	"testing"

	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema. A
// single connection keeps the :memory: database alive and serializes
// concurrent transactions the way the production MySQL row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// recordingPublisher captures emitted events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []PaperEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event PaperEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type testEnv struct {
	db        *gorm.DB
	papers    *PaperService
	versions  *VersionService
	approvals *ApprovalService
	audit     *SecurityLogService
	published *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	versions := NewVersionService(repository.NewVersionRepository(db), db)
	approvals := NewApprovalService(repository.NewApprovalRepository(db), repository.NewUserRepository(db), db)
	audit := NewSecurityLogService(repository.NewSecurityLogRepository(db))
	published := &recordingPublisher{}
	papers := NewPaperService(repository.NewPaperRepository(db), versions, approvals, audit, published, db)

	return &testEnv{
		db:        db,
		papers:    papers,
		versions:  versions,
		approvals: approvals,
		audit:     audit,
		published: published,
	}
}

func (e *testEnv) seedUser(t *testing.T, name string, role model.UserRole) uint {
	t.Helper()

	u := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "irrelevant",
		Role:     role,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u.ID
}

// seedPaper creates a draft paper with one version through the
// coordinator and returns it.
func (e *testEnv) seedPaper(t *testing.T, code string, creatorID, reviewerID uint, content []byte) *model.ExamPaper {
	t.Helper()

	paper, err := e.papers.CreatePaper(CreatePaperInput{
		Code:       code,
		Title:      "Midterm " + code,
		ReviewerID: reviewerID,
		Content:    content,
	}, creatorID)
	require.NoError(t, err)
	return paper
}

// auditEntries returns all security log entries, oldest first.
func (e *testEnv) auditEntries(t *testing.T) []model.SecurityLog {
	t.Helper()

	var entries []model.SecurityLog
	require.NoError(t, e.db.Order("id asc").Find(&entries).Error)
	return entries
}

// lastAudit returns the newest security log entry.
func (e *testEnv) lastAudit(t *testing.T) model.SecurityLog {
	t.Helper()

	entries := e.auditEntries(t)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

// tamper flips a byte of the stored content behind the checksum's back.
func (e *testEnv) tamper(t *testing.T, versionID uint) {
	t.Helper()

	var v model.ExamPaperVersion
	require.NoError(t, e.db.First(&v, versionID).Error)
	require.NotEmpty(t, v.Content)

	v.Content[0] ^= 0xff
	require.NoError(t, e.db.Model(&model.ExamPaperVersion{}).
		Where("id = ?", versionID).
		Update("content", v.Content).Error)
}
