package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User
	err   error
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "coursevault"})
}

func TestValidateToken(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Email: "jane@example.com", FullName: "Jane Doe", Role: models.RoleLearner}
	token, expiresAt, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "Jane Doe", claims.FullName)
	assert.False(t, claims.IsAdmin())
}

func TestValidateTokenRejectsForeignSecretAndIssuer(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Role: models.RoleAdmin}

	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour, Issuer: "coursevault"})
	token, _, err := other.IssueAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	foreign := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "elsewhere"})
	token, _, err = foreign.IssueAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Issuer: "coursevault"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestCurrentUser(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]*models.User{
		"u1": {ID: "u1", FullName: "Jane Doe", Active: true},
		"u2": {ID: "u2", FullName: "Old Account", Active: false},
	}}
	svc := newAuthService(repo)

	user, err := svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.FullName)

	_, err = svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "u2"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "missing"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.CurrentUser(context.Background(), nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
