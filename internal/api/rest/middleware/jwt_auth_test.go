package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockKeyFetcher is a mock implementation of keyfetcher.PublicKeyFetcher.
type mockKeyFetcher struct {
	mock.Mock
}

func (m *mockKeyFetcher) FetchPublicKey() (*rsa.PublicKey, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rsa.PublicKey), args.Error(1)
}

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func createTestToken(t *testing.T, privateKey *rsa.PrivateKey, claims *StaffClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenString
}

func createValidClaims(issuer, audience, subject, role string) *StaffClaims {
	return &StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
}

func TestNewJWTAuthMiddleware(t *testing.T) {
	testCases := map[string]struct {
		config JWTConfig
		want   time.Duration
	}{
		"should use custom clock skew when provided": {
			config: JWTConfig{
				KeyFetcher: &mockKeyFetcher{},
				Issuer:     "test-issuer",
				Audience:   "test-audience",
				ClockSkew:  10 * time.Minute,
			},
			want: 10 * time.Minute,
		},
		"should use default clock skew when not provided": {
			config: JWTConfig{
				KeyFetcher: &mockKeyFetcher{},
				Issuer:     "test-issuer",
				Audience:   "test-audience",
			},
			want: DefaultClockSkewTolerance,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			middleware := NewJWTAuthMiddleware(tc.config)
			assert.Equal(t, tc.want, middleware.clockSkew)
			assert.Equal(t, tc.config.Issuer, middleware.issuer)
			assert.Equal(t, tc.config.Audience, middleware.audience)
		})
	}
}

func TestJWTAuthMiddleware_Handler(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	now := time.Now()

	testCases := map[string]struct {
		setupRequest   func() *http.Request
		setupMock      func(*mockKeyFetcher)
		expectedStatus int
		expectedUserID string
		expectedRole   string
	}{
		"should authenticate successfully with valid token": {
			setupRequest: func() *http.Request {
				claims := createValidClaims("test-issuer", "test-audience", "server-7", "server")
				token := createTestToken(t, privateKey, claims)
				req := httptest.NewRequest("GET", "/test", http.NoBody)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			setupMock: func(m *mockKeyFetcher) {
				m.On("FetchPublicKey").Return(publicKey, nil)
			},
			expectedStatus: http.StatusOK,
			expectedUserID: "server-7",
			expectedRole:   "server",
		},
		"should return unauthorized when authorization header is missing": {
			setupRequest: func() *http.Request {
				return httptest.NewRequest("GET", "/test", http.NoBody)
			},
			setupMock:      func(_ *mockKeyFetcher) {},
			expectedStatus: http.StatusUnauthorized,
		},
		"should return unauthorized when bearer prefix is missing": {
			setupRequest: func() *http.Request {
				req := httptest.NewRequest("GET", "/test", http.NoBody)
				req.Header.Set("Authorization", "token-without-prefix")
				return req
			},
			setupMock:      func(_ *mockKeyFetcher) {},
			expectedStatus: http.StatusUnauthorized,
		},
		"should return unauthorized when role claim is missing": {
			setupRequest: func() *http.Request {
				claims := createValidClaims("test-issuer", "test-audience", "server-7", "")
				token := createTestToken(t, privateKey, claims)
				req := httptest.NewRequest("GET", "/test", http.NoBody)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			setupMock: func(m *mockKeyFetcher) {
				m.On("FetchPublicKey").Return(publicKey, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		"should return unauthorized when token is expired": {
			setupRequest: func() *http.Request {
				claims := createValidClaims("test-issuer", "test-audience", "server-7", "server")
				claims.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
				token := createTestToken(t, privateKey, claims)
				req := httptest.NewRequest("GET", "/test", http.NoBody)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			setupMock: func(m *mockKeyFetcher) {
				m.On("FetchPublicKey").Return(publicKey, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		"should return unauthorized when issuer does not match": {
			setupRequest: func() *http.Request {
				claims := createValidClaims("other-issuer", "test-audience", "server-7", "server")
				token := createTestToken(t, privateKey, claims)
				req := httptest.NewRequest("GET", "/test", http.NoBody)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			setupMock: func(m *mockKeyFetcher) {
				m.On("FetchPublicKey").Return(publicKey, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			fetcher := new(mockKeyFetcher)
			tc.setupMock(fetcher)

			m := NewJWTAuthMiddleware(JWTConfig{
				KeyFetcher: fetcher,
				Issuer:     "test-issuer",
				Audience:   "test-audience",
			})

			var gotUserID, gotRole string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = GetUserIDFromContext(r.Context())
				gotRole, _ = GetRoleFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			m.Handler(next).ServeHTTP(rec, tc.setupRequest())

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedStatus == http.StatusOK {
				assert.Equal(t, tc.expectedUserID, gotUserID)
				assert.Equal(t, tc.expectedRole, gotRole)
			}
		})
	}
}
