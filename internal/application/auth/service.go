package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paperhub-api/internal/domain"
	jwtinfra "github.com/paperhub-api/internal/infrastructure/jwt"
	"github.com/paperhub-api/internal/pkg/password"
)

// LoginResult carries the stateless session pair handed to the client.
// Neither token is persisted server-side.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) error
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
	Profile(ctx context.Context, userID int64) (*domain.User, error)
	DeleteAccount(ctx context.Context, userID int64) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID int64) (*domain.User, error)
	MarkVerified(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, newHash, jti string, tokenExpiry time.Time) error
	DeleteCascade(ctx context.Context, userID int64) ([]domain.Paper, error)
}

type tokenProvider interface {
	Issue(purpose jwtinfra.Purpose, subject string) (string, error)
	Verify(token string, expected jwtinfra.Purpose) (*jwtinfra.Claims, error)
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type objectStore interface {
	Delete(ctx context.Context, uri string) error
}

type service struct {
	users       userStore
	tokens      tokenProvider
	mailer      mailer
	objects     objectStore
	frontendURL string
	backendURL  string
}

type ServiceDeps struct {
	UserRepo    userStore
	Tokens      tokenProvider
	Mailer      mailer
	ObjectStore objectStore
	FrontendURL string
	BackendURL  string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:       deps.UserRepo,
		tokens:      deps.Tokens,
		mailer:      deps.Mailer,
		objects:     deps.ObjectStore,
		frontendURL: deps.FrontendURL,
		backendURL:  deps.BackendURL,
	}
}

// normalizeEmail lowercases and trims so uniqueness and lookups are
// case-insensitive at every boundary.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register persists a new unverified identity and dispatches the
// verification email. Registration is complete once the row exists: a
// transport failure is surfaced but does not roll the identity back.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) error {
	email := normalizeEmail(req.Email)
	hash, err := password.Hash(req.Password)
	if err != nil {
		return err
	}
	u := &domain.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
		Verified:     false,
		Department:   req.Department,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}

	token, err := s.tokens.Issue(jwtinfra.PurposeVerifyEmail, email)
	if err != nil {
		return err
	}
	body, err := renderVerificationEmail(s.backendURL, token)
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(email, "Verify your email", body); err != nil {
		slog.Error("verification email send failed", "email", email, "err", err)
		return fmt.Errorf("could not send verification email: %w", domain.ErrDependency)
	}
	return nil
}

// VerifyEmail flips the verified flag for the token's subject.
// Idempotent: re-verifying an already-verified identity is harmless.
func (s *service) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token, jwtinfra.PurposeVerifyEmail)
	if err != nil {
		return fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	if u.Verified {
		return nil
	}
	return s.users.MarkVerified(ctx, u.Email)
}

// Login checks credentials and hands out one access and one refresh
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil || !password.Verify(req.Password, u.PasswordHash) {
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if !u.Verified {
		return nil, fmt.Errorf("email not verified, please verify your email: %w", domain.ErrBadRequest)
	}
	access, err := s.tokens.Issue(jwtinfra.PurposeAccess, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(jwtinfra.PurposeRefresh, u.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

// Refresh re-issues an access token bound to the refresh token's
// subject. The refresh token itself is not rotated.
func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Verify(refreshToken, jwtinfra.PurposeRefresh)
	if err != nil {
		return "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	return s.tokens.Issue(jwtinfra.PurposeAccess, u.Email)
}

// RequestPasswordReset issues a reset token and emails the reset link.
// An unknown email reports success without sending anything, so the
// endpoint cannot be used to enumerate accounts.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		slog.Debug("password reset requested for unknown email", "email", email)
		return nil
	}
	token, err := s.tokens.Issue(jwtinfra.PurposeResetPassword, u.Email)
	if err != nil {
		return err
	}
	body, err := renderPasswordResetEmail(s.frontendURL, u.Email, token)
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(u.Email, "Reset Your Password", body); err != nil {
		slog.Error("password reset email send failed", "email", u.Email, "err", err)
		return fmt.Errorf("could not send password reset email: %w", domain.ErrDependency)
	}
	return nil
}

// ResetPassword overwrites the stored hash after verifying the reset
// token. The token's jti is consumed in the same transaction, so a
// reset token works exactly once within its TTL.
func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(token, jwtinfra.PurposeResetPassword)
	if err != nil {
		return fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, claims.Subject, hash, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	return nil
}

// Authenticate resolves an access token to its identity. Used by the
// transport middleware; the subject must still exist at verification
// time.
func (s *service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(accessToken, jwtinfra.PurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

// DeleteAccount removes the identity, its papers and every bookmark
// touching them in one transaction, then cleans the backing objects
// best-effort.
func (s *service) DeleteAccount(ctx context.Context, userID int64) error {
	papers, err := s.users.DeleteCascade(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range papers {
		if err := s.objects.Delete(ctx, p.QuestionURI); err != nil {
			slog.Warn("failed to delete question document", "paper_id", p.ID, "err", err)
		}
		if p.SolutionURI != nil {
			if err := s.objects.Delete(ctx, *p.SolutionURI); err != nil {
				slog.Warn("failed to delete solution document", "paper_id", p.ID, "err", err)
			}
		}
	}
	return nil
}
