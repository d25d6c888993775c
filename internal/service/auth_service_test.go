package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phdtrack/phdtrack-api/internal/models"
)

const testSecret = "test-secret"

func newAuthFixture(t *testing.T, dataset models.Dataset) (*memStore, AuthService) {
	t.Helper()
	st := &memStore{data: dataset}
	svc := NewAuthService(st, "prof", "super-secret", testSecret, time.Hour, testLogger())
	return st, svc
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticateSupervisor(t *testing.T) {
	_, svc := newAuthFixture(t, models.Dataset{})

	session, err := svc.Authenticate(context.Background(), "prof", "super-secret")
	require.NoError(t, err)
	require.Equal(t, RoleSupervisor, session.Role)
	require.False(t, session.PasswordChangeRequired)
	require.NotEmpty(t, session.Token)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(session.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.Equal(t, "prof", claims["sub"])
	require.Equal(t, RoleSupervisor, claims["role"])
}

func TestAuthenticateStudent(t *testing.T) {
	record := models.StudentRecord{Password: bcryptHash(t, "secret123"), ForcePasswordChange: true}
	_, svc := newAuthFixture(t, models.Dataset{"alice": record})

	session, err := svc.Authenticate(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	require.Equal(t, RoleStudent, session.Role)
	require.True(t, session.PasswordChangeRequired)
}

func TestAuthenticateLegacyPlaintextPassword(t *testing.T) {
	record := models.StudentRecord{Password: "plainpass"}
	_, svc := newAuthFixture(t, models.Dataset{"bob": record})

	session, err := svc.Authenticate(context.Background(), "bob", "plainpass")
	require.NoError(t, err)
	require.Equal(t, RoleStudent, session.Role)
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	record := models.StudentRecord{Password: bcryptHash(t, "secret123")}
	_, svc := newAuthFixture(t, models.Dataset{"alice": record})

	_, err := svc.Authenticate(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user and wrong password are indistinguishable.
	_, err = svc.Authenticate(context.Background(), "ghost", "secret123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "prof", "not-the-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePasswordForcedFlowSkipsOldPassword(t *testing.T) {
	record := models.StudentRecord{Password: bcryptHash(t, "initial1"), ForcePasswordChange: true}
	st, svc := newAuthFixture(t, models.Dataset{"alice": record})

	refreshed, err := svc.ChangePassword(context.Background(), "alice", "", "brandnew", "brandnew")
	require.NoError(t, err)

	updated := st.data["alice"]
	require.False(t, updated.ForcePasswordChange)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("brandnew")))

	// The returned session is usable right away: its token no longer carries
	// the change-due claim.
	require.False(t, refreshed.PasswordChangeRequired)
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(refreshed.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", claims["sub"])
	require.Equal(t, false, claims["pwd_change"])

	session, err := svc.Authenticate(context.Background(), "alice", "brandnew")
	require.NoError(t, err)
	require.False(t, session.PasswordChangeRequired)
}

func TestChangePasswordValidation(t *testing.T) {
	record := models.StudentRecord{Password: bcryptHash(t, "current1")}
	_, svc := newAuthFixture(t, models.Dataset{"alice": record})

	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, "alice", "wrong", "brandnew", "brandnew")
	require.ErrorIs(t, err, ErrWrongOldPassword)

	_, err = svc.ChangePassword(ctx, "alice", "current1", "short", "short")
	require.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.ChangePassword(ctx, "alice", "current1", "brandnew", "different")
	require.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = svc.ChangePassword(ctx, "ghost", "current1", "brandnew", "brandnew")
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = svc.ChangePassword(ctx, "prof", "super-secret", "brandnew", "brandnew")
	require.ErrorIs(t, err, ErrSupervisorPassword)
}

func TestRequiresPasswordChange(t *testing.T) {
	dataset := models.Dataset{
		"alice": {Password: "x", ForcePasswordChange: true},
		"bob":   {Password: "x"},
	}
	_, svc := newAuthFixture(t, dataset)

	forced, err := svc.RequiresPasswordChange(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, forced)

	forced, err = svc.RequiresPasswordChange(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, forced)

	_, err = svc.RequiresPasswordChange(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrStudentNotFound)
}
