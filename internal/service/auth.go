// Package service contains application services for identity and playlists.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/crypto"
	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/limiter"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
	"github.com/and161185/playlister/internal/revoke"
	"github.com/and161185/playlister/internal/token"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Messages shown to end users.
const (
	msgRequired         = "Please enter all required fields."
	msgPasswordLength   = "Please enter a password of at least 8 characters."
	msgPasswordMatch    = "Please enter the same password twice."
	msgEmailTaken       = "An account with this email address already exists."
	msgPasswordTooLong  = "Please enter a shorter password."
	dummyPasswordSource = "playlister-dummy-password"
)

// State is the authentication state of a session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session is the caller's identity as established by a token.
// UserID is for in-process use and never leaves the transport.
type Session struct {
	State  State
	UserID string
	User   model.PublicUser
}

// LoggedIn reports whether the session is authenticated.
func (s Session) LoggedIn() bool { return s.State == Authenticated }

func authenticated(u *model.User) Session {
	return Session{State: Authenticated, UserID: u.ID, User: u.Public()}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName      string
	LastName       string
	Email          string
	Password       string
	PasswordVerify string
}

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(userID string) (string, error)
	Verify(tok string) (token.Claims, bool)
}

var _ TokenCodec = (*token.Codec)(nil)

// IdentityService registers users and manages token-backed sessions.
type IdentityService struct {
	users   repository.UserRepository
	hasher  crypto.Hasher
	tokens  TokenCodec
	revoked revoke.Store
	lim     limiter.Limiter
	log     *zap.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// NewIdentityService constructs IdentityService with required dependencies.
// A nil limiter disables lockouts; a nil revocation store keeps revocations in memory.
func NewIdentityService(users repository.UserRepository, hasher crypto.Hasher, tokens TokenCodec,
	revoked revoke.Store, lim limiter.Limiter, log *zap.Logger) *IdentityService {
	if revoked == nil {
		revoked = revoke.NewMemory()
	}
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityService{users: users, hasher: hasher, tokens: tokens, revoked: revoked, lim: lim, log: log}
}

// Register validates the form, stores the user and opens a session.
// Rules are checked in order: required, password_length, password_match, email_taken.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (Session, string, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || in.PasswordVerify == "" {
		return Session{}, "", errs.Invalid(errs.RuleRequired, msgRequired)
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return Session{}, "", errs.Invalid(errs.RulePasswordLength, msgPasswordLength)
	}
	if in.Password != in.PasswordVerify {
		return Session{}, "", errs.Invalid(errs.RulePasswordMatch, msgPasswordMatch)
	}

	_, err := s.users.FindUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Session{}, "", errs.Invalid(errs.RuleEmailTaken, msgEmailTaken)
	case !errors.Is(err, errs.ErrNotFound):
		return Session{}, "", fmt.Errorf("register: %w", err)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return Session{}, "", errs.Invalid(errs.RulePasswordLength, msgPasswordTooLong)
	}
	if err != nil {
		return Session{}, "", fmt.Errorf("register: hash: %w", err)
	}
	u, err := s.users.CreateUser(ctx, model.NewUser{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PasswordDigest: digest,
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, errs.ErrAlreadyExists) {
			return Session{}, "", errs.Invalid(errs.RuleEmailTaken, msgEmailTaken)
		}
		return Session{}, "", fmt.Errorf("register: %w", err)
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, "", fmt.Errorf("register: issue token: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return authenticated(u), tok, nil
}

// Login authenticates without client-based throttling.
func (s *IdentityService) Login(ctx context.Context, email, password string) (Session, string, error) {
	return s.LoginFrom(ctx, email, password, "")
}

// LoginFrom applies lockout by (email, client) and authenticates the user.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *IdentityService) LoginFrom(ctx context.Context, email, password, client string) (Session, string, error) {
	if email == "" || password == "" {
		return Session{}, "", errs.Invalid(errs.RuleRequired, msgRequired)
	}

	allowed, _, err := s.lim.Allow(ctx, email, client)
	if err != nil {
		return Session{}, "", fmt.Errorf("login: limiter: %w", err)
	}
	if !allowed {
		return Session{}, "", errs.ErrRateLimited
	}

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return Session{}, "", fmt.Errorf("login: %w", err)
	}
	var ok bool
	if u == nil {
		// Spend the same work as a real check.
		s.hasher.Verify(ctx, password, s.dummy(ctx))
	} else {
		ok = s.hasher.Verify(ctx, password, u.PasswordDigest)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, client); ferr == nil && blocked {
			return Session{}, "", errs.ErrRateLimited
		}
		return Session{}, "", errs.ErrInvalidCredentials
	}

	_ = s.lim.Success(ctx, email, client)

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, "", fmt.Errorf("login: issue token: %w", err)
	}
	return authenticated(u), tok, nil
}

func (s *IdentityService) dummy(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash(ctx, dummyPasswordSource)
		if err != nil {
			s.log.Warn("dummy digest", zap.Error(err))
			return
		}
		s.dummyDigest = d
	})
	return s.dummyDigest
}

// Logout revokes tok when it is valid and always returns an anonymous session.
func (s *IdentityService) Logout(ctx context.Context, tok string) Session {
	claims, ok := s.tokens.Verify(tok)
	if !ok || claims.TokenID == "" {
		return Session{}
	}
	ttl := revoke.Forever
	if !claims.ExpiresAt.IsZero() {
		ttl = time.Until(claims.ExpiresAt)
		if ttl <= 0 {
			return Session{}
		}
	}
	if err := s.revoked.Revoke(ctx, claims.TokenID, ttl); err != nil {
		s.log.Warn("revoke session", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	return Session{}
}

// WhoAmI resolves the session carried by tok. Missing, invalid or revoked tokens
// and deleted users yield an anonymous session; storage failures are returned.
func (s *IdentityService) WhoAmI(ctx context.Context, tok string) (Session, error) {
	claims, ok := s.tokens.Verify(tok)
	if !ok {
		return Session{}, nil
	}
	if claims.TokenID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return Session{}, fmt.Errorf("whoami: revocation: %w", err)
		}
		if revoked {
			return Session{}, nil
		}
	}
	u, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errs.IsNotFound(err) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("whoami: %w", err)
	}
	return authenticated(u), nil
}
