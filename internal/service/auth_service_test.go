package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/veritas-ponto/veritas-api/internal/models"
	"github.com/veritas-ponto/veritas-api/pkg/config"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type adminRepoStub struct {
	admin *models.Admin
}

func (s *adminRepoStub) FindByUsername(_ context.Context, username string) (*models.Admin, error) {
	if s.admin == nil || s.admin.Username != username {
		return nil, sql.ErrNoRows
	}
	return s.admin, nil
}

func newAuthFixture(t *testing.T, password string) (*AuthService, *adminRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &adminRepoStub{admin: &models.Admin{ID: 1, Username: "admin", PasswordHash: string(hash)}}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
	return NewAuthService(repo, cfg, nil, nil), repo
}

func TestAuthLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3nha-forte"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	subject, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestAuthLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "errada"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsUnknownAdmin(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "s3nha-forte"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginValidatesPayload(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3nha-forte"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	assert.Error(t, err)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, "s3nha-forte")

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
