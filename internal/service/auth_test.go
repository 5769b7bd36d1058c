package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/playlister/internal/crypto"
	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/limiter"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository"
	"github.com/and161185/playlister/internal/repository/memory"
	"github.com/and161185/playlister/internal/revoke"
	"github.com/and161185/playlister/internal/token"
)

// fakeHasher keeps tests fast; digests are reversible on purpose.
type fakeHasher struct {
	verifyCalls atomic.Int32
	hashErr     error
}

var _ crypto.Hasher = (*fakeHasher)(nil)

func (h *fakeHasher) Hash(_ context.Context, p string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "fake$" + p, nil
}

func (h *fakeHasher) Verify(_ context.Context, p, digest string) bool {
	h.verifyCalls.Add(1)
	return digest == "fake$"+p
}

// failingUsers wraps a real repository and overrides chosen methods.
type failingUsers struct {
	repository.UserRepository
	findByEmailErr error
	findByIDErr    error
	createErr      error
}

func (f *failingUsers) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.findByEmailErr != nil {
		return nil, f.findByEmailErr
	}
	return f.UserRepository.FindUserByEmail(ctx, email)
}

func (f *failingUsers) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	if f.findByIDErr != nil {
		return nil, f.findByIDErr
	}
	return f.UserRepository.FindUserByID(ctx, id)
}

func (f *failingUsers) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.UserRepository.CreateUser(ctx, in)
}

type fixture struct {
	engine  *memory.Engine
	hasher  *fakeHasher
	tokens  *token.Codec
	revoked *revoke.Memory
	svc     *IdentityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := memory.New()
	require.NoError(t, e.Connect(context.Background()))
	codec, err := token.New([]byte("secret"), 0)
	require.NoError(t, err)
	f := &fixture{engine: e, hasher: &fakeHasher{}, tokens: codec, revoked: revoke.NewMemory()}
	f.svc = NewIdentityService(e, f.hasher, codec, f.revoked, nil, nil)
	return f
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: "engine123", PasswordVerify: "engine123",
	}
}

func requireRule(t *testing.T, err error, rule string) {
	t.Helper()
	require.ErrorIs(t, err, errs.ErrValidation)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, rule, ve.Rule)
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, tok, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, Authenticated, sess.State)
	require.Equal(t, model.PublicUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}, sess.User)

	claims, ok := f.tokens.Verify(tok)
	require.True(t, ok)
	require.Equal(t, sess.UserID, claims.UserID)

	u, err := f.engine.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "fake$engine123", u.PasswordDigest)
}

func TestRegister_RuleOrder(t *testing.T) {
	cases := []struct {
		name string
		edit func(*RegisterInput)
		rule string
	}{
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }, errs.RuleRequired},
		{"missing verify", func(in *RegisterInput) { in.PasswordVerify = "" }, errs.RuleRequired},
		{"required before length", func(in *RegisterInput) { in.Email, in.Password = "", "short" }, errs.RuleRequired},
		{"short password", func(in *RegisterInput) { in.Password, in.PasswordVerify = "short", "short" }, errs.RulePasswordLength},
		{"length before match", func(in *RegisterInput) { in.Password, in.PasswordVerify = "short", "other" }, errs.RulePasswordLength},
		{"multibyte counted as characters", func(in *RegisterInput) { in.Password, in.PasswordVerify = "éééé", "éééé" }, errs.RulePasswordLength},
		{"mismatch", func(in *RegisterInput) { in.PasswordVerify = "engine124" }, errs.RulePasswordMatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tc.edit(&in)
			_, tok, err := f.svc.Register(context.Background(), in)
			requireRule(t, err, tc.rule)
			require.Empty(t, tok)

			all, err := f.engine.GetAllPlaylists(context.Background())
			require.NoError(t, err)
			require.Empty(t, all)
			_, err = f.engine.FindUserByEmail(context.Background(), "ada@example.com")
			require.ErrorIs(t, err, errs.ErrNotFound)
		})
	}
}

func TestRegister_MultibytePasswordOfEightCharacters(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Password, in.PasswordVerify = "éééééééé", "éééééééé"
	_, tok, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
}

func TestRegister_PasswordTooLongForHasher(t *testing.T) {
	f := newFixture(t)
	f.hasher.hashErr = fmt.Errorf("hash: %w", crypto.ErrPasswordTooLong)
	_, tok, err := f.svc.Register(context.Background(), validInput())
	requireRule(t, err, errs.RulePasswordLength)
	require.Empty(t, tok)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, _, err = f.svc.Register(ctx, validInput())
	requireRule(t, err, errs.RuleEmailTaken)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	var ok atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Register(ctx, validInput())
			if err == nil {
				ok.Add(1)
				return
			}
			var ve *errs.ValidationError
			if !errors.As(err, &ve) || ve.Rule != errs.RuleEmailTaken {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, ok.Load())
}

func TestRegister_StorageErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	users := &failingUsers{UserRepository: f.engine, findByEmailErr: boom}
	svc := NewIdentityService(users, f.hasher, f.tokens, nil, nil, nil)
	_, _, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrValidation)

	users = &failingUsers{UserRepository: f.engine, createErr: errs.ErrAlreadyExists}
	svc = NewIdentityService(users, f.hasher, f.tokens, nil, nil, nil)
	_, _, err = svc.Register(context.Background(), validInput())
	requireRule(t, err, errs.RuleEmailTaken)

	f.hasher.hashErr = boom
	_, _, err = f.svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, boom)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	sess, tok, err := f.svc.Login(ctx, "ada@example.com", "engine123")
	require.NoError(t, err)
	require.True(t, sess.LoggedIn())
	require.Equal(t, "ada@example.com", sess.User.Email)
	require.NotEmpty(t, tok)

	_, _, err = f.svc.Login(ctx, "", "engine123")
	requireRule(t, err, errs.RuleRequired)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "")
	requireRule(t, err, errs.RuleRequired)
}

func TestLogin_DoesNotRevealWhichPartFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	before := f.hasher.verifyCalls.Load()
	_, tok1, errUnknown := f.svc.Login(ctx, "nobody@example.com", "engine123")
	require.Equal(t, before+1, f.hasher.verifyCalls.Load(), "unknown email must still run a verify")
	_, tok2, errWrong := f.svc.Login(ctx, "ada@example.com", "wrong-password")

	require.ErrorIs(t, errUnknown, errs.ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, errs.ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())
	require.Empty(t, tok1)
	require.Empty(t, tok2)
}

func TestLogin_StorageErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	svc := NewIdentityService(&failingUsers{UserRepository: f.engine, findByEmailErr: boom},
		f.hasher, f.tokens, nil, nil, nil)
	_, _, err := svc.Login(context.Background(), "ada@example.com", "engine123")
	require.ErrorIs(t, err, boom)
}

func TestLoginFrom_Lockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	lim := limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	svc := NewIdentityService(f.engine, f.hasher, f.tokens, nil, lim, nil)

	_, _, err = svc.LoginFrom(ctx, "ada@example.com", "bad-one", "10.0.0.1")
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	_, _, err = svc.LoginFrom(ctx, "ada@example.com", "bad-two", "10.0.0.1")
	require.ErrorIs(t, err, errs.ErrRateLimited)

	// Even the right password is refused while blocked.
	_, _, err = svc.LoginFrom(ctx, "ada@example.com", "engine123", "10.0.0.1")
	require.ErrorIs(t, err, errs.ErrRateLimited)

	_, _, err = svc.LoginFrom(ctx, "ada@example.com", "engine123", "10.0.0.2")
	require.NoError(t, err)
}

func TestWhoAmI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, tok, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	sess, err := f.svc.WhoAmI(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, reg, sess)

	for _, bad := range []string{"", "garbage", tok[:len(tok)-4]} {
		sess, err = f.svc.WhoAmI(ctx, bad)
		require.NoError(t, err)
		require.Equal(t, Anonymous, sess.State)
	}

	require.NoError(t, f.engine.DeleteUser(ctx, reg.UserID))
	sess, err = f.svc.WhoAmI(ctx, tok)
	require.NoError(t, err)
	require.False(t, sess.LoggedIn())
}

func TestWhoAmI_StorageErrorPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tok, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	boom := errors.New("boom")
	svc := NewIdentityService(&failingUsers{UserRepository: f.engine, findByIDErr: boom},
		f.hasher, f.tokens, nil, nil, nil)
	_, err = svc.WhoAmI(ctx, tok)
	require.ErrorIs(t, err, boom)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tok, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)
	_, other, err := f.svc.Login(ctx, "ada@example.com", "engine123")
	require.NoError(t, err)

	require.Equal(t, Anonymous, f.svc.Logout(ctx, tok).State)
	require.Equal(t, Anonymous, f.svc.Logout(ctx, tok).State)
	require.Equal(t, Anonymous, f.svc.Logout(ctx, "").State)

	sess, err := f.svc.WhoAmI(ctx, tok)
	require.NoError(t, err)
	require.False(t, sess.LoggedIn())

	// Other sessions of the same user survive.
	sess, err = f.svc.WhoAmI(ctx, other)
	require.NoError(t, err)
	require.True(t, sess.LoggedIn())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "anonymous", Anonymous.String())
	require.True(t, strings.HasPrefix(Authenticated.String(), "auth"))
}
