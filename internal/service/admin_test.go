package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mailit/tracking-gateway/internal/models"
)

type fakeAdminStore struct {
	users map[string]*models.AdminUser
}

func (f *fakeAdminStore) Create(ctx context.Context, user *models.AdminUser) error {
	user.ID = uuid.New()
	f.users[user.Email] = user
	return nil
}

func (f *fakeAdminStore) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return f.users[email], nil
}

func newTestAdminService() (*AdminService, *fakeAdminStore) {
	store := &fakeAdminStore{users: map[string]*models.AdminUser{}}
	s := NewAdminService(store, "test-secret", time.Hour)
	s.hashCost = bcrypt.MinCost
	return s, store
}

func TestAdminRegisterAndLogin(t *testing.T) {
	s, _ := newTestAdminService()
	ctx := context.Background()

	user, err := s.Register(ctx, "ops@example.com", "hunter22", "Ops")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	token, err := s.Login(ctx, "ops@example.com", "hunter22")
	require.NoError(t, err)

	email, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", email)
}

func TestAdminLoginWrongPassword(t *testing.T) {
	s, _ := newTestAdminService()
	ctx := context.Background()

	_, err := s.Register(ctx, "ops@example.com", "hunter22", "Ops")
	require.NoError(t, err)

	_, err = s.Login(ctx, "ops@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminRegisterDuplicateEmail(t *testing.T) {
	s, _ := newTestAdminService()
	ctx := context.Background()

	_, err := s.Register(ctx, "ops@example.com", "hunter22", "Ops")
	require.NoError(t, err)

	_, err = s.Register(ctx, "ops@example.com", "other", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAdminTokenExpiry(t *testing.T) {
	s, _ := newTestAdminService()
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }

	_, err := s.Register(ctx, "ops@example.com", "hunter22", "Ops")
	require.NoError(t, err)

	token, err := s.Login(ctx, "ops@example.com", "hunter22")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminValidateGarbageToken(t *testing.T) {
	s, _ := newTestAdminService()

	_, err := s.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
