package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/paperhub-api/internal/domain"
	jwtinfra "github.com/paperhub-api/internal/infrastructure/jwt"
	"github.com/paperhub-api/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) MarkVerified(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockUserStore) ResetPassword(ctx context.Context, email, newHash, jti string, tokenExpiry time.Time) error {
	return m.Called(ctx, email, newHash, jti, tokenExpiry).Error(0)
}
func (m *mockUserStore) DeleteCascade(ctx context.Context, userID int64) ([]domain.Paper, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).([]domain.Paper); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) Issue(purpose jwtinfra.Purpose, subject string) (string, error) {
	args := m.Called(purpose, subject)
	return args.String(0), args.Error(1)
}
func (m *mockTokens) Verify(token string, expected jwtinfra.Purpose) (*jwtinfra.Claims, error) {
	args := m.Called(token, expected)
	if c, _ := args.Get(0).(*jwtinfra.Claims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, htmlBody string) error {
	return m.Called(to, subject, htmlBody).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Delete(ctx context.Context, uri string) error {
	return m.Called(ctx, uri).Error(0)
}

// --- builder ---

func newTestService(us *mockUserStore, tk *mockTokens, ml *mockMailer, os *mockObjectStore) Service {
	return NewService(ServiceDeps{
		UserRepo:    us,
		Tokens:      tk,
		Mailer:      ml,
		ObjectStore: os,
		FrontendURL: "http://localhost:5173",
		BackendURL:  "http://localhost:8000",
	})
}

func resetClaims(subject, jti string) *jwtinfra.Claims {
	return &jwtinfra.Claims{
		Purpose: jwtinfra.PurposeResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

// --- Register ---

func TestRegister_CreatesUnverifiedAndSendsEmail(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}
	ml := &mockMailer{}

	us.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "ana@uni.edu" && !u.Verified && u.PasswordHash != "s3cretpw"
	})).Return(nil)
	tk.On("Issue", jwtinfra.PurposeVerifyEmail, "ana@uni.edu").Return("verify-tok", nil)
	ml.On("SendEmail", "ana@uni.edu", "Verify your email", mock.Anything).Return(nil)

	svc := newTestService(us, tk, ml, nil)
	err := svc.Register(context.Background(), domain.RegisterRequest{
		Username:   "ana",
		Email:      "Ana@Uni.Edu",
		Password:   "s3cretpw",
		Department: "CS",
	})

	require.NoError(t, err)
	us.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	svc := newTestService(us, nil, nil, nil)
	err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "ana", Email: "ana@uni.edu", Password: "s3cretpw", Department: "CS",
	})

	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}
	ml := &mockMailer{}

	us.On("Create", mock.Anything, mock.Anything).Return(nil)
	tk.On("Issue", jwtinfra.PurposeVerifyEmail, "ana@uni.edu").Return("verify-tok", nil)
	ml.On("SendEmail", "ana@uni.edu", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newTestService(us, tk, ml, nil)
	err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "ana", Email: "ana@uni.edu", Password: "s3cretpw", Department: "CS",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDependency))
	us.AssertExpectations(t)
}

// --- VerifyEmail ---

func TestVerifyEmail_MarksVerified(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	tk.On("Verify", "tok", jwtinfra.PurposeVerifyEmail).Return(&jwtinfra.Claims{
		Purpose:          jwtinfra.PurposeVerifyEmail,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana@uni.edu"},
	}, nil)
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(&domain.User{ID: 1, Email: "ana@uni.edu"}, nil)
	us.On("MarkVerified", mock.Anything, "ana@uni.edu").Return(nil)

	svc := newTestService(us, tk, nil, nil)
	require.NoError(t, svc.VerifyEmail(context.Background(), "tok"))
	us.AssertExpectations(t)
}

func TestVerifyEmail_Idempotent(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	tk.On("Verify", "tok", jwtinfra.PurposeVerifyEmail).Return(&jwtinfra.Claims{
		Purpose:          jwtinfra.PurposeVerifyEmail,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana@uni.edu"},
	}, nil)
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(&domain.User{ID: 1, Email: "ana@uni.edu", Verified: true}, nil)

	svc := newTestService(us, tk, nil, nil)
	require.NoError(t, svc.VerifyEmail(context.Background(), "tok"))
	us.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestVerifyEmail_BadToken(t *testing.T) {
	tk := &mockTokens{}
	tk.On("Verify", "bad", jwtinfra.PurposeVerifyEmail).Return(nil, jwtinfra.ErrTokenMalformed)

	svc := newTestService(nil, tk, nil, nil)
	err := svc.VerifyEmail(context.Background(), "bad")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- Login ---

func verifiedUser(t *testing.T, plaintext string) *domain.User {
	t.Helper()
	hash, err := password.Hash(plaintext)
	require.NoError(t, err)
	return &domain.User{
		ID:           7,
		Username:     "ana",
		Email:        "ana@uni.edu",
		PasswordHash: hash,
		Verified:     true,
		Department:   "CS",
	}
}

func TestLogin_Success(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(verifiedUser(t, "s3cretpw"), nil)
	tk.On("Issue", jwtinfra.PurposeAccess, "ana@uni.edu").Return("access-tok", nil)
	tk.On("Issue", jwtinfra.PurposeRefresh, "ana@uni.edu").Return("refresh-tok", nil)

	svc := newTestService(us, tk, nil, nil)
	res, err := svc.Login(context.Background(), domain.LoginRequest{Email: "ana@uni.edu", Password: "s3cretpw"})

	require.NoError(t, err)
	assert.Equal(t, "access-tok", res.AccessToken)
	assert.Equal(t, "refresh-tok", res.RefreshToken)
	assert.Equal(t, int64(7), res.User.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(verifiedUser(t, "s3cretpw"), nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "ana@uni.edu", Password: "wrong"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ghost@uni.edu").Return(nil, domain.ErrNotFound)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "ghost@uni.edu", Password: "whatever"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestLogin_UnverifiedEmail(t *testing.T) {
	u := verifiedUser(t, "s3cretpw")
	u.Verified = false

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.Login(context.Background(), domain.LoginRequest{Email: "ana@uni.edu", Password: "s3cretpw"})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Refresh ---

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	tk.On("Verify", "refresh-tok", jwtinfra.PurposeRefresh).Return(&jwtinfra.Claims{
		Purpose:          jwtinfra.PurposeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana@uni.edu"},
	}, nil)
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(&domain.User{ID: 7, Email: "ana@uni.edu", Verified: true}, nil)
	tk.On("Issue", jwtinfra.PurposeAccess, "ana@uni.edu").Return("new-access", nil)

	svc := newTestService(us, tk, nil, nil)
	access, err := svc.Refresh(context.Background(), "refresh-tok")

	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	tk := &mockTokens{}
	tk.On("Verify", "access-tok", jwtinfra.PurposeRefresh).Return(nil, jwtinfra.ErrPurposeMismatch)

	svc := newTestService(nil, tk, nil, nil)
	_, err := svc.Refresh(context.Background(), "access-tok")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- password reset ---

func TestRequestPasswordReset_UnknownEmailSilent(t *testing.T) {
	us := &mockUserStore{}
	ml := &mockMailer{}
	us.On("GetByEmail", mock.Anything, "ghost@uni.edu").Return(nil, domain.ErrNotFound)

	svc := newTestService(us, nil, ml, nil)
	err := svc.RequestPasswordReset(context.Background(), "ghost@uni.edu")

	require.NoError(t, err)
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_SendsEmail(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}
	ml := &mockMailer{}

	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(&domain.User{ID: 7, Email: "ana@uni.edu"}, nil)
	tk.On("Issue", jwtinfra.PurposeResetPassword, "ana@uni.edu").Return("reset-tok", nil)
	ml.On("SendEmail", "ana@uni.edu", "Reset Your Password", mock.Anything).Return(nil)

	svc := newTestService(us, tk, ml, nil)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ana@uni.edu"))
	ml.AssertExpectations(t)
}

func TestResetPassword_ConsumesToken(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	claims := resetClaims("ana@uni.edu", "jti-1")
	tk.On("Verify", "reset-tok", jwtinfra.PurposeResetPassword).Return(claims, nil)
	us.On("ResetPassword", mock.Anything, "ana@uni.edu", mock.Anything, "jti-1", claims.ExpiresAt.Time).Return(nil)

	svc := newTestService(us, tk, nil, nil)
	require.NoError(t, svc.ResetPassword(context.Background(), "reset-tok", "newpassword"))
	us.AssertExpectations(t)
}

func TestResetPassword_ReplayRejected(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	claims := resetClaims("ana@uni.edu", "jti-1")
	tk.On("Verify", "reset-tok", jwtinfra.PurposeResetPassword).Return(claims, nil)
	us.On("ResetPassword", mock.Anything, "ana@uni.edu", mock.Anything, "jti-1", mock.Anything).Return(domain.ErrUnauthorized)

	svc := newTestService(us, tk, nil, nil)
	err := svc.ResetPassword(context.Background(), "reset-tok", "newpassword")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	tk := &mockTokens{}
	tk.On("Verify", "old-tok", jwtinfra.PurposeResetPassword).Return(nil, jwtinfra.ErrTokenExpired)

	svc := newTestService(nil, tk, nil, nil)
	err := svc.ResetPassword(context.Background(), "old-tok", "newpassword")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- Authenticate ---

func TestAuthenticate_ResolvesUser(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	tk.On("Verify", "access-tok", jwtinfra.PurposeAccess).Return(&jwtinfra.Claims{
		Purpose:          jwtinfra.PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ana@uni.edu"},
	}, nil)
	us.On("GetByEmail", mock.Anything, "ana@uni.edu").Return(&domain.User{ID: 7, Email: "ana@uni.edu"}, nil)

	svc := newTestService(us, tk, nil, nil)
	u, err := svc.Authenticate(context.Background(), "access-tok")

	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestAuthenticate_DeletedSubject(t *testing.T) {
	us := &mockUserStore{}
	tk := &mockTokens{}

	tk.On("Verify", "access-tok", jwtinfra.PurposeAccess).Return(&jwtinfra.Claims{
		Purpose:          jwtinfra.PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "gone@uni.edu"},
	}, nil)
	us.On("GetByEmail", mock.Anything, "gone@uni.edu").Return(nil, domain.ErrNotFound)

	svc := newTestService(us, tk, nil, nil)
	_, err := svc.Authenticate(context.Background(), "access-tok")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- DeleteAccount ---

func TestDeleteAccount_CleansObjects(t *testing.T) {
	us := &mockUserStore{}
	os := &mockObjectStore{}

	sol := "https://bucket.s3.amazonaws.com/solutions/one.pdf"
	us.On("DeleteCascade", mock.Anything, int64(7)).Return([]domain.Paper{
		{ID: 1, QuestionURI: "https://bucket.s3.amazonaws.com/question_papers/one.pdf", SolutionURI: &sol},
		{ID: 2, QuestionURI: "https://bucket.s3.amazonaws.com/question_papers/two.pdf"},
	}, nil)
	os.On("Delete", mock.Anything, "https://bucket.s3.amazonaws.com/question_papers/one.pdf").Return(nil)
	os.On("Delete", mock.Anything, sol).Return(nil)
	os.On("Delete", mock.Anything, "https://bucket.s3.amazonaws.com/question_papers/two.pdf").Return(nil)

	svc := newTestService(us, nil, nil, os)
	require.NoError(t, svc.DeleteAccount(context.Background(), 7))
	os.AssertExpectations(t)
}

func TestDeleteAccount_ObjectFailureIsNonFatal(t *testing.T) {
	us := &mockUserStore{}
	os := &mockObjectStore{}

	us.On("DeleteCascade", mock.Anything, int64(7)).Return([]domain.Paper{
		{ID: 1, QuestionURI: "https://bucket.s3.amazonaws.com/question_papers/one.pdf"},
	}, nil)
	os.On("Delete", mock.Anything, mock.Anything).Return(errors.New("s3 unavailable"))

	svc := newTestService(us, nil, nil, os)
	assert.NoError(t, svc.DeleteAccount(context.Background(), 7))
}

func TestDeleteAccount_CascadeFailureStops(t *testing.T) {
	us := &mockUserStore{}
	os := &mockObjectStore{}
	us.On("DeleteCascade", mock.Anything, int64(7)).Return(nil, domain.ErrNotFound)

	svc := newTestService(us, nil, nil, os)
	err := svc.DeleteAccount(context.Background(), 7)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	os.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
