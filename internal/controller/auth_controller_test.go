package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam_paper_backend/internal/config"
	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/service"
	"exam_paper_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newRegisterRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
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

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour

	auth := NewAuthController(service.NewAuthService(repository.NewUserRepository(db), cfg))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/register", auth.Register)
	return router, db
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterRejectsPrivilegedRole(t *testing.T) {
	router, db := newRegisterRouter(t)

	w := postJSON(t, router, "/api/register", gin.H{
		"name":     "mallory",
		"email":    "mallory@example.com",
		"password": "password1",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// nothing was persisted
	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterAllowsWorkflowRoles(t *testing.T) {
	router, db := newRegisterRouter(t)

	for _, role := range []model.UserRole{model.Author, model.Approver} {
		w := postJSON(t, router, "/api/register", gin.H{
			"name":     "user-" + string(role),
			"email":    string(role) + "@example.com",
			"password": "password1",
			"role":     role,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var user model.User
		require.NoError(t, db.Where("email = ?", string(role)+"@example.com").First(&user).Error)
		assert.Equal(t, role, user.Role)
	}
}

func TestRegisterDefaultsToAuthor(t *testing.T) {
	router, db := newRegisterRouter(t)

	w := postJSON(t, router, "/api/register", gin.H{
		"name":     "plain",
		"email":    "plain@example.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var user model.User
	require.NoError(t, db.Where("email = ?", "plain@example.com").First(&user).Error)
	assert.Equal(t, model.Author, user.Role)
}
