package service

import (
	"testing"
	"time"

	"exam_paper_backend/internal/config"
	"exam_paper_backend/internal/model"
	"exam_paper_backend/internal/repository"
	"exam_paper_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	db := newTestDB(t)
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuthService(t)

	user := &model.User{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
		Role:     model.Approver,
	}
	require.NoError(t, auth.Register(user))
	assert.NotEqual(t, "s3cret-pass", user.Password, "password must be stored hashed")

	token, err := auth.Login("alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Approver, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth := newAuthService(t)

	first := &model.User{Name: "alice", Email: "alice@example.com", Password: "pw-one"}
	require.NoError(t, auth.Register(first))

	second := &model.User{Name: "imposter", Email: "alice@example.com", Password: "pw-two"}
	assert.ErrorIs(t, auth.Register(second), util.ErrEmailRegistered)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newAuthService(t)

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "s3cret-pass"}
	require.NoError(t, auth.Register(user))

	_, err := auth.Login("alice@example.com", "wrong")
	assert.Error(t, err)

	_, err = auth.Login("nobody@example.com", "s3cret-pass")
	assert.Error(t, err)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	db := newTestDB(t)
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	auth := NewAuthService(repository.NewUserRepository(db), cfg)

	user := &model.User{Name: "alice", Email: "alice@example.com", Password: "s3cret-pass"}
	require.NoError(t, auth.Register(user))
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("disabled", true).Error)

	_, err := auth.Login("alice@example.com", "s3cret-pass")
	assert.EqualError(t, err, "account disabled")
}
