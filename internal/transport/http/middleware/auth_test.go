package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paperhub-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthenticator struct{ mock.Mock }

func (m *mockAuthenticator) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	args := m.Called(ctx, accessToken)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAuth_MissingHeader(t *testing.T) {
	a := &mockAuthenticator{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(a)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	a.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestAuth_BadToken(t *testing.T) {
	a := &mockAuthenticator{}
	a.On("Authenticate", mock.Anything, "not-a-real-token").Return(nil, domain.ErrUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	Auth(a)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidToken_InjectsUser(t *testing.T) {
	a := &mockAuthenticator{}
	a.On("Authenticate", mock.Anything, "good-token").Return(&domain.User{ID: 7, Email: "ana@uni.edu"}, nil)

	var gotUser *domain.User
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	Auth(a)(capture).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, int64(7), gotUser.ID)
}

func TestOptionalAuth_NoTokenPassesThrough(t *testing.T) {
	a := &mockAuthenticator{}

	var called bool
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := UserFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	OptionalAuth(a)(capture).ServeHTTP(rr, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOptionalAuth_QueryParamToken(t *testing.T) {
	a := &mockAuthenticator{}
	a.On("Authenticate", mock.Anything, "good-token").Return(&domain.User{ID: 7}, nil)

	var gotUser *domain.User
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/?accessToken=good-token", nil)
	rr := httptest.NewRecorder()
	OptionalAuth(a)(capture).ServeHTTP(rr, req)

	require.NotNil(t, gotUser)
	assert.Equal(t, int64(7), gotUser.ID)
}

func TestOptionalAuth_InvalidTokenStaysAnonymous(t *testing.T) {
	a := &mockAuthenticator{}
	a.On("Authenticate", mock.Anything, "expired").Return(nil, domain.ErrUnauthorized)

	var anonymous bool
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := UserFromContext(r.Context())
		anonymous = !ok
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rr := httptest.NewRecorder()
	OptionalAuth(a)(capture).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, anonymous)
}
