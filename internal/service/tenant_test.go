package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
)

type fakeTenantAdminStore struct {
	byID map[uuid.UUID]*models.Tenant
}

func (f *fakeTenantAdminStore) Create(ctx context.Context, tenant *models.Tenant) error {
	tenant.ID = uuid.New()
	f.byID[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantAdminStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return f.byID[id], nil
}

func (f *fakeTenantAdminStore) List(ctx context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range f.byID {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTenantAdminStore) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := f.byID[id]
	if prefix, ok := updates["key_prefix"]; ok {
		t.KeyPrefix = prefix.(string)
	}
	if hash, ok := updates["key_hash"]; ok {
		t.KeyHash = hash.(string)
	}
	if active, ok := updates["is_active"]; ok {
		t.IsActive = active.(bool)
	}
	if plan, ok := updates["plan"]; ok {
		t.Plan = plan.(models.UsagePlan)
	}
	return nil
}

func newTestTenantService() (*TenantService, *fakeTenantAdminStore) {
	store := &fakeTenantAdminStore{byID: map[uuid.UUID]*models.Tenant{}}
	auth := NewAuthService(nil, nil)
	auth.hashCost = bcrypt.MinCost
	return NewTenantService(store, auth, ratelimit.NewLimiter()), store
}

func TestCreateTenantIssuesKey(t *testing.T) {
	s, _ := newTestTenantService()

	tenant, key, err := s.CreateTenant(context.Background(), "acme", models.PlanStarter, true, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "sk_live_"))
	assert.Equal(t, key[:len(tenant.KeyPrefix)], tenant.KeyPrefix)
	assert.True(t, tenant.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(tenant.KeyHash), []byte(key)))
}

func TestCreateTenantRejectsBadPlan(t *testing.T) {
	s, _ := newTestTenantService()

	_, _, err := s.CreateTenant(context.Background(), "acme", models.UsagePlan("platinum"), false, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = s.CreateTenant(context.Background(), "", models.PlanFree, false, nil)
	assert.ErrorAs(t, err, &verr)
}

func TestRotateKeyReplacesCredential(t *testing.T) {
	s, store := newTestTenantService()

	tenant, oldKey, err := s.CreateTenant(context.Background(), "acme", models.PlanPro, true, nil)
	require.NoError(t, err)
	oldPrefix := tenant.KeyPrefix

	newKey, err := s.RotateKey(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.NotEqual(t, oldKey, newKey)
	assert.True(t, strings.HasPrefix(newKey, "sk_live_"), "rotation keeps the environment")

	updated := store.byID[tenant.ID]
	assert.NotEqual(t, oldPrefix, updated.KeyPrefix)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.KeyHash), []byte(newKey)))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(updated.KeyHash), []byte(oldKey)))
}

func TestRevokeKeyClearsHashKeepsPrefix(t *testing.T) {
	s, store := newTestTenantService()

	tenant, _, err := s.CreateTenant(context.Background(), "acme", models.PlanFree, false, nil)
	require.NoError(t, err)
	prefix := tenant.KeyPrefix

	require.NoError(t, s.RevokeKey(context.Background(), tenant.ID))

	updated := store.byID[tenant.ID]
	assert.Empty(t, updated.KeyHash)
	assert.False(t, updated.IsActive)
	assert.Equal(t, prefix, updated.KeyPrefix)
}

func TestRotateUnknownTenant(t *testing.T) {
	s, _ := newTestTenantService()

	_, err := s.RotateKey(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
