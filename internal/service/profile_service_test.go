package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/repository"
	"go-accounting-ws/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]model.User{}}
}

func (r *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByID(id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) modify(id uuid.UUID, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) UpdatePassword(id uuid.UUID, hashed string) error {
	return r.modify(id, func(u *model.User) { u.Password = hashed })
}

func (r *fakeUserRepo) UpdateTokenVersion(id uuid.UUID, version string) error {
	return r.modify(id, func(u *model.User) { u.TokenVersion = version })
}

func (r *fakeUserRepo) UpdateLastLogin(id uuid.UUID, at time.Time) error {
	return r.modify(id, func(u *model.User) { u.LastLoginAt = &at })
}

func newProfileFixture() (ProfileService, *fakeUserRepo, *jwt.Manager) {
	repo := newFakeUserRepo()
	tokens := jwt.NewManager("test-secret", time.Hour)
	return NewProfileService(repo, tokens, zap.NewNop()), repo, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo, tokens := newProfileFixture()

	user, err := svc.Register(&RegisterRequest{Email: " Ana@Example.com ", Password: "secret1", DisplayName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.True(t, user.IsActive)

	_, err = svc.Register(&RegisterRequest{Email: "ana@example.com", Password: "secret1", DisplayName: "Ana 2"})
	assert.True(t, apperrors.IsValidationError(err), "duplicate email")

	resp, err := svc.Login("ANA@example.com", "secret1")
	require.NoError(t, err)
	claims, err := tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "Ana", claims.Name)

	stored, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.TokenVersion, claims.TokenVersion)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = svc.Login("ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newProfileFixture()

	tests := []RegisterRequest{
		{Email: "not-an-email", Password: "secret1", DisplayName: "A"},
		{Email: "a@example.com", Password: "short", DisplayName: "A"},
		{Email: "a@example.com", Password: "secret1", DisplayName: "  "},
	}
	for _, req := range tests {
		_, err := svc.Register(&req)
		assert.True(t, apperrors.IsValidationError(err), "%+v", req)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	svc, repo, _ := newProfileFixture()
	user, err := svc.Register(&RegisterRequest{Email: "a@example.com", Password: "secret1", DisplayName: "A"})
	require.NoError(t, err)
	require.NoError(t, repo.modify(user.ID, func(u *model.User) { u.IsActive = false }))

	_, err = svc.Login("a@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestProfileUpdates(t *testing.T) {
	svc, repo, _ := newProfileFixture()
	user, err := svc.Register(&RegisterRequest{Email: "a@example.com", Password: "secret1", DisplayName: "A"})
	require.NoError(t, err)

	updated, err := svc.UpdateDisplayName(user.ID, " Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.DisplayName)

	_, err = svc.UpdateDisplayName(user.ID, "")
	assert.True(t, apperrors.IsValidationError(err))

	login, err := svc.Login("a@example.com", "secret1")
	require.NoError(t, err)
	before, _ := repo.FindByID(user.ID)

	assert.ErrorIs(t, svc.ChangePassword(user.ID, "nope", "newsecret"), ErrWrongPassword)
	assert.True(t, apperrors.IsValidationError(svc.ChangePassword(user.ID, "secret1", "123")))
	require.NoError(t, svc.ChangePassword(user.ID, "secret1", "newsecret"))

	after, _ := repo.FindByID(user.ID)
	assert.NotEqual(t, before.TokenVersion, after.TokenVersion, "old tokens are revoked")
	assert.True(t, after.CheckPassword("newsecret"))
	assert.NotEmpty(t, login.Token)

	profile, err := svc.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)

	_, err = svc.GetProfile(uuid.New())
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDeleteAccountRequiresPassword(t *testing.T) {
	svc, repo, _ := newProfileFixture()
	user, err := svc.Register(&RegisterRequest{Email: "a@example.com", Password: "secret1", DisplayName: "A"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteAccount(user.ID, "wrong"), ErrWrongPassword)
	require.NoError(t, svc.DeleteAccount(user.ID, "secret1"))

	_, err = repo.FindByID(user.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestProfileRepositoryFailure(t *testing.T) {
	svc, repo, _ := newProfileFixture()
	repo.err = errors.New("db down")

	_, err := svc.GetProfile(uuid.New())
	assert.True(t, apperrors.IsOperationFailed(err))
	_, err = svc.Login("a@example.com", "secret1")
	assert.True(t, apperrors.IsOperationFailed(err))
}
