package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid bearer token allows request", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		claims := &Claims{Role: RoleAdmin}
		claims.Subject = "ops"
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := GetClaimsFromContext(r.Context())
			require.NotNil(t, extracted)
			assert.Equal(t, "ops", extracted.Subject)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		handler := NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler())

		tests := []string{"", "Basic abc", "Bearer"}
		for _, header := range tests {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		}
		mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "bad").Return(nil, ErrInvalidToken)
		handler := NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
	})

	t.Run("disabled auth is reported", func(t *testing.T) {
		handler := NewAuthMiddleware(NewHMACValidator("", "faq-rag"), logger).RequireAuth(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer anything")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "disabled")
	})
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(new(MockTokenValidator), zap.NewNop())
	handler := mw.RequireRole(RoleAdmin)(okHandler())

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"wrong role", &Claims{Role: "viewer"}, http.StatusUnauthorized},
		{"admin", &Claims{Role: RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHMACValidator(t *testing.T) {
	const secret = "s3cret"
	validator := NewHMACValidator(secret, "faq-rag")

	t.Run("issued token validates", func(t *testing.T) {
		token, err := IssueToken(secret, "faq-rag", "ops", RoleAdmin, time.Hour)
		require.NoError(t, err)

		claims, err := validator.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, RoleAdmin, claims.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueToken("other", "faq-rag", "ops", RoleAdmin, time.Hour)
		require.NoError(t, err)
		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueToken(secret, "faq-rag", "ops", RoleAdmin, -time.Minute)
		require.NoError(t, err)
		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := IssueToken(secret, "someone-else", "ops", RoleAdmin, time.Hour)
		require.NoError(t, err)
		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := &Claims{Role: RoleAdmin}
		claims.Issuer = "faq-rag"
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		claims := &Claims{Role: RoleAdmin}
		claims.Issuer = "faq-rag"
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := NewHMACValidator("", "").ValidateToken(context.Background(), "x")
		assert.True(t, errors.Is(err, ErrAuthDisabled))
		_, err = IssueToken("", "", "ops", RoleAdmin, time.Hour)
		assert.ErrorIs(t, err, ErrAuthDisabled)
	})
}
