package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/auth"
	"github.com/ChelseaChanu/taskSync/internal/authpw"
	"github.com/ChelseaChanu/taskSync/internal/config"
	"github.com/ChelseaChanu/taskSync/internal/directory"
	"github.com/ChelseaChanu/taskSync/internal/email"
	"github.com/ChelseaChanu/taskSync/internal/export"
	"github.com/ChelseaChanu/taskSync/internal/filehost"
	"github.com/ChelseaChanu/taskSync/internal/rbac"
	"github.com/ChelseaChanu/taskSync/internal/search"
	"github.com/ChelseaChanu/taskSync/internal/session"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"github.com/ChelseaChanu/taskSync/internal/tasks"
	"github.com/ChelseaChanu/taskSync/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// maxVerifyWaiters bounds verification waits held open across all users.
	maxVerifyWaiters        = 256
	maxVerifyWaitersPerUser = 2
)

var (
	errForbidden          = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errStorageUnavailable = domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)
	errTooManyWaiters     = tooManyRequests("TOO_MANY_WAITERS", "Too many verification waits are open")
)

type Session struct {
	Token        string
	RefreshToken string
	User         store.User
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) UserID() string {
	return s.User.UID
}

// Deps are the optional collaborators chosen at startup.
type Deps struct {
	// Sessions defaults to refresh sessions kept in the document store.
	Sessions session.Store
	// Files is nil when no object storage is configured.
	Files *filehost.Service
	// Meili is nil when Meilisearch is not configured.
	Meili *search.Meili
	// Mail is nil when no provider is configured; emails are then only logged.
	Mail email.Sender
	Log  *zap.Logger
}

type Service struct {
	cfg       config.Config
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
	docs      *store.Live
	sessions  session.Store
	accounts  *authpw.Service
	directory *directory.Directory
	tasks     *tasks.Repository
	files     *filehost.Service
	search    *search.Service
	exporter  *export.Service
	mailer    *email.Mailer
	mailLive  bool

	waiters *semaphore.Weighted
	waitMu  sync.Mutex
	waiting map[string]int
}

func New(cfg config.Config, docs *store.Live, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewDocumentStore(docs)
	}
	mail := deps.Mail
	if mail == nil {
		mail = email.NewLogSender(log)
	}

	dir := directory.New(docs)
	repo := tasks.New(docs, tasks.WithResubmission(cfg.AllowResubmission), tasks.WithLogger(log))

	return &Service{
		cfg:       cfg,
		log:       log,
		loc:       cfg.Location(),
		now:       time.Now,
		docs:      docs,
		sessions:  sessions,
		accounts:  authpw.NewService(authpw.NewDocumentAccounts(docs), docs.Hub()),
		directory: dir,
		tasks:     repo,
		files:     deps.Files,
		search:    search.NewService(deps.Meili, search.NewScan(repo), log),
		exporter:  export.NewService(repo, dir),
		mailer:    email.NewMailer(mail, "TaskSync", cfg.AppURL),
		mailLive:  deps.Mail != nil,
		waiters:   semaphore.NewWeighted(maxVerifyWaiters),
		waiting:   make(map[string]int),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

// ReadinessChecks pings every backing service that can be pinged.
func (s *Service) ReadinessChecks(ctx context.Context) (map[string]any, bool) {
	ready := true
	checks := map[string]any{"database": map[string]any{"status": "ok"}}
	if err := s.Ping(ctx); err != nil {
		ready = false
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if pinger, ok := s.sessions.(interface{ Ping(context.Context) error }); ok {
		checks["sessions"] = map[string]any{"status": "ok"}
		if err := pinger.Ping(ctx); err != nil {
			ready = false
			checks["sessions"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}
	checks["search"] = map[string]any{"status": s.search.Mode()}
	return checks, ready
}

// ReindexAll pushes every stored task into the search index.
func (s *Service) ReindexAll(ctx context.Context) {
	s.search.ReindexAll(ctx)
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Designation string `json:"designation"`
}

type SignUpResult struct {
	UserID string
	// DevToken is the verification token, handed back only when no mail
	// provider is configured.
	DevToken string
}

// SignUp creates the account and its profile, then mails the verification link.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	profile := directory.Profile{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Designation: strings.TrimSpace(in.Designation),
	}
	if err := profile.Validate(); err != nil {
		return SignUpResult{}, err
	}

	created, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{Email: in.Email, Password: in.Password})
	if err != nil {
		return SignUpResult{}, err
	}
	profile.Email = created.Email
	user, err := s.directory.CreateProfile(ctx, created.UserID, profile)
	if err != nil {
		// sign-in backfills a missing profile
		s.log.Error("signup: create profile", zap.String("uid", created.UserID), zap.Error(err))
	}

	result := SignUpResult{UserID: created.UserID}
	if err := s.mailer.SendVerificationEmail(ctx, created.Email, user.FullName(), created.VerificationToken); err != nil {
		s.log.Warn("signup: send verification email", zap.String("uid", created.UserID), zap.Error(err))
	}
	if !s.mailLive {
		result.DevToken = created.VerificationToken
	}
	return result, nil
}

// SignIn checks the credentials and opens a session. A missing profile is
// recreated with the lowest designation.
func (s *Service) SignIn(ctx context.Context, emailAddress, password string) (Session, error) {
	account, err := s.accounts.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		return Session{}, err
	}
	user, err := s.directory.EnsureProfile(ctx, account.UID, store.User{
		FirstName:   localPart(account.Email),
		Designation: string(rbac.Teacher),
		Email:       account.Email,
	})
	if err != nil {
		return Session{}, fmt.Errorf("load profile: %w", err)
	}
	return s.issueSession(ctx, user)
}

func localPart(address string) string {
	name, _, _ := strings.Cut(address, "@")
	return name
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.accounts.VerifyEmail(ctx, token)
}

// ResendVerification mails a fresh verification link. The returned token is
// only set when no mail provider is configured.
func (s *Service) ResendVerification(ctx context.Context, emailAddress string) (string, error) {
	account, token, err := s.accounts.SendVerification(ctx, strings.ToLower(strings.TrimSpace(emailAddress)))
	if err != nil || token == "" {
		return "", err
	}
	if err := s.mailer.SendVerificationEmail(ctx, account.Email, s.displayName(ctx, account.UID), token); err != nil {
		s.log.Warn("resend verification email", zap.String("uid", account.UID), zap.Error(err))
	}
	if s.mailLive {
		return "", nil
	}
	return token, nil
}

// WaitVerified blocks until uid verifies their email or the configured wait
// elapses.
func (s *Service) WaitVerified(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, badRequest("MISSING_USER", "userId is required")
	}
	if !s.waiters.TryAcquire(1) {
		return false, errTooManyWaiters
	}
	defer s.waiters.Release(1)
	if !s.holdWaiter(uid) {
		return false, errTooManyWaiters
	}
	defer s.releaseWaiter(uid)

	verified, err := s.accounts.WaitVerified(ctx, uid, s.cfg.VerifyWaitTimeout)
	if errors.Is(err, store.ErrNotFound) {
		return false, notFound()
	}
	return verified, err
}

func (s *Service) holdWaiter(uid string) bool {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	if s.waiting[uid] >= maxVerifyWaitersPerUser {
		return false
	}
	s.waiting[uid]++
	return true
}

func (s *Service) releaseWaiter(uid string) {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()
	if s.waiting[uid] <= 1 {
		delete(s.waiting, uid)
		return
	}
	s.waiting[uid]--
}

// RequestPasswordReset mails a reset link when the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddress string) (string, error) {
	emailAddress = strings.ToLower(strings.TrimSpace(emailAddress))
	token, err := s.accounts.RequestPasswordReset(ctx, emailAddress)
	if err != nil || token == "" {
		return "", err
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, emailAddress, "", token); err != nil {
		s.log.Warn("send password reset email", zap.Error(err))
	}
	if s.mailLive {
		return "", nil
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.accounts.ResetPassword(ctx, authpw.ResetPasswordRequest{Token: token, NewPassword: newPassword})
}

func (s *Service) displayName(ctx context.Context, uid string) string {
	user, err := s.directory.Get(ctx, uid)
	if err != nil {
		return ""
	}
	return user.FullName()
}

// Refresh rotates refreshToken: the old one stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, session.ErrSessionNotFound
	}
	tokenHash := auth.HashToken(refreshToken)
	uid, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.directory.Get(ctx, uid)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID()
	claims := auth.NewClaims(user.UID, user.FullName(), user.Designation, jti, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh, err := util.NewToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpires := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.UID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		User:         user,
		JTI:          jti,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// SessionFromToken checks an access token and loads the caller's profile.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.directory.Get(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		User:      user,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes refreshToken. Access tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil
	}
	return err
}
