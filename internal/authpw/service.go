// Package authpw provides email/password authentication with verification.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/auth"
	"github.com/ChelseaChanu/taskSync/internal/live"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/util"
	"github.com/ChelseaChanu/taskSync/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrWrongCredentials = errors.New("wrong email or password")
	ErrUnverified       = errors.New("email not verified")
	ErrAlreadyVerified  = errors.New("email already verified")
	ErrInvalidToken     = errors.New("invalid or expired token")
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

// Service provides email/password authentication
type Service struct {
	accounts AccountStore
	hub      live.Hub
	now      func() time.Time
}

// NewService wires the account store and the hub that announces account writes.
func NewService(accounts AccountStore, hub live.Hub) *Service {
	return &Service{
		accounts: accounts,
		hub:      hub,
		now:      time.Now,
	}
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type SignUpResponse struct {
	UserID            string
	Email             string
	VerificationToken string
}

// SignUp creates an unverified account and its first verification token.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	_, err := s.accounts.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	token, err := util.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	expiresAt := s.now().Add(verificationTTL)

	account := store.Account{
		UID:                   util.NewID(),
		Email:                 req.Email,
		PasswordHash:          string(hash),
		VerificationToken:     auth.HashToken(token),
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	return &SignUpResponse{
		UserID:            account.UID,
		Email:             account.Email,
		VerificationToken: token,
	}, nil
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignIn checks the credentials. An unverified account is returned together
// with ErrUnverified so the caller can offer a new verification email.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.Account, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return store.Account{}, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrWrongCredentials
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return store.Account{}, ErrWrongCredentials
	}
	if !account.EmailVerified {
		return account, ErrUnverified
	}
	return account, nil
}

// SendVerification issues a fresh verification token. Unknown emails yield an
// empty token and no error.
func (s *Service) SendVerification(ctx context.Context, email string) (store.Account, string, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, "", nil
	}
	if err != nil {
		return store.Account{}, "", fmt.Errorf("lookup account: %w", err)
	}
	if account.EmailVerified {
		return account, "", ErrAlreadyVerified
	}

	token, err := util.NewToken()
	if err != nil {
		return store.Account{}, "", fmt.Errorf("generate verification token: %w", err)
	}
	expiresAt := s.now().Add(verificationTTL)
	account.VerificationToken = auth.HashToken(token)
	account.VerificationExpiresAt = &expiresAt
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return store.Account{}, "", fmt.Errorf("save verification token: %w", err)
	}
	return account, token, nil
}

// VerifyEmail marks the account owning token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	account, err := s.accounts.FindByVerificationToken(ctx, auth.HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("lookup verification token: %w", err)
	}
	if account.VerificationExpiresAt == nil || !s.now().Before(*account.VerificationExpiresAt) {
		return ErrInvalidToken
	}

	account.EmailVerified = true
	account.VerificationToken = ""
	account.VerificationExpiresAt = nil
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("verify account: %w", err)
	}
	return nil
}

// WaitVerified blocks until uid's account is verified, timeout elapses or ctx
// is cancelled. It reports whether the account ended up verified.
func (s *Service) WaitVerified(ctx context.Context, uid string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// subscribe before the first read so a verification in between is not lost
	listener, err := s.hub.Subscribe(ctx, store.CollectionAccounts)
	if err != nil {
		return false, fmt.Errorf("watch accounts: %w", err)
	}
	defer listener.Close()

	verified, err := s.isVerified(ctx, uid)
	if err != nil || verified {
		return verified, err
	}

	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, ctx.Err()
			}
			// the hub may have dropped the event; read the account once more
			return s.isVerified(context.WithoutCancel(ctx), uid)
		case event, ok := <-listener.Events():
			if !ok {
				return false, nil
			}
			if event.ID != uid {
				continue
			}
			verified, err := s.isVerified(ctx, uid)
			if err != nil || verified {
				return verified, err
			}
		}
	}
}

func (s *Service) isVerified(ctx context.Context, uid string) (bool, error) {
	account, err := s.accounts.GetAccount(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("lookup account: %w", err)
	}
	return account.EmailVerified, nil
}

// RequestPasswordReset creates a reset token. Unknown emails yield an empty
// token and no error so that callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}

	token, err := util.NewToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(resetTTL)
	account.ResetToken = auth.HashToken(token)
	account.ResetExpiresAt = &expiresAt
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	return token, nil
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ResetPassword sets a new password using a single-use reset token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	account, err := s.accounts.FindByResetToken(ctx, auth.HashToken(req.Token))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if account.ResetExpiresAt == nil || !s.now().Before(*account.ResetExpiresAt) {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.ResetToken = ""
	account.ResetExpiresAt = nil
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
