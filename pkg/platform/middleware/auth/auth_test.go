package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
)

const testSigningKey = "test-signing-key"

func signToken(t *testing.T, claims jwt.MapClaims, key string, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestValidatorValidateToken(t *testing.T) {
	validator := NewValidator(testSigningKey)
	subjectID := id.NewSubjectID()

	t.Run("valid token yields claims", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  subjectID.String(),
			"role": "operator",
			"exp":  time.Now().Add(time.Hour).Unix(),
		}, testSigningKey, jwt.SigningMethodHS256)

		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, subjectID, claims.SubjectID)
		assert.Equal(t, RoleOperator, claims.Role)
	})

	t.Run("wrong signing key is rejected", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  subjectID.String(),
			"role": "subject",
		}, "other-key", jwt.SigningMethodHS256)

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  subjectID.String(),
			"role": "subject",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		}, testSigningKey, jwt.SigningMethodHS256)

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing subject claim is rejected", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"role": "subject"}, testSigningKey, jwt.SigningMethodHS256)
		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  subjectID.String(),
			"role": "superadmin",
		}, testSigningKey, jwt.SigningMethodHS256)

		_, err := validator.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := NewValidator(testSigningKey)
	subjectID := id.NewSubjectID()

	var gotSubject id.SubjectID
	var gotRole Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetSubjectID(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := RequireAuth(validator, logger)(next)

	t.Run("valid bearer token passes claims through", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":  subjectID.String(),
			"role": "subject",
			"exp":  time.Now().Add(time.Hour).Unix(),
		}, testSigningKey, jwt.SigningMethodHS256)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, subjectID, gotSubject)
		assert.Equal(t, RoleSubject, gotRole)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
