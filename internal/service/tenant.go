package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
)

var ErrTenantNotFound = errors.New("tenant not found")

type tenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

// TenantService is the admin-plane surface for provisioning tenants
// and their credentials. Plaintext keys are returned exactly once, at
// issuance; afterwards only the prefix and hash exist.
type TenantService struct {
	store   tenantStore
	auth    *AuthService
	limiter *ratelimit.Limiter
}

func NewTenantService(store tenantStore, auth *AuthService, limiter *ratelimit.Limiter) *TenantService {
	return &TenantService{store: store, auth: auth, limiter: limiter}
}

// CreateTenant provisions a tenant and issues its first API key.
// Returns the tenant and the plaintext key.
func (s *TenantService) CreateTenant(ctx context.Context, name string, plan models.UsagePlan, live bool, expiresAt *time.Time) (*models.Tenant, string, error) {
	if name == "" {
		return nil, "", &ValidationError{Message: "name is required"}
	}
	if !plan.Valid() {
		return nil, "", &ValidationError{Message: "unknown plan: " + string(plan)}
	}

	key, prefix, hash, err := s.issueKey(live)
	if err != nil {
		return nil, "", err
	}

	tenant := &models.Tenant{
		Name:      name,
		KeyPrefix: prefix,
		KeyHash:   hash,
		Plan:      plan,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.store.Create(ctx, tenant); err != nil {
		return nil, "", err
	}

	return tenant, key, nil
}

// RotateKey replaces a tenant's credential. The old key stops working
// immediately; the new plaintext is returned once.
func (s *TenantService) RotateKey(ctx context.Context, id uuid.UUID) (string, error) {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return "", err
	}

	live := strings.HasPrefix(tenant.KeyPrefix, "sk_live_")
	key, prefix, hash, err := s.issueKey(live)
	if err != nil {
		return "", err
	}

	err = s.store.Update(ctx, id, map[string]interface{}{
		"key_prefix": prefix,
		"key_hash":   hash,
	})
	if err != nil {
		return "", err
	}

	s.auth.InvalidateCachedTenant(ctx, tenant.KeyPrefix)
	return key, nil
}

// RevokeKey disables a tenant's credential. The prefix is kept for
// audit; the hash is cleared so no key can ever verify again.
func (s *TenantService) RevokeKey(ctx context.Context, id uuid.UUID) error {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, id, map[string]interface{}{
		"key_hash":  "",
		"is_active": false,
	})
	if err != nil {
		return err
	}

	s.auth.InvalidateCachedTenant(ctx, tenant.KeyPrefix)
	return nil
}

// UpdatePlan moves a tenant to a new usage plan. The quota bucket is
// rebuilt lazily on the next request.
func (s *TenantService) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.UsagePlan) error {
	if !plan.Valid() {
		return &ValidationError{Message: "unknown plan: " + string(plan)}
	}

	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Update(ctx, id, map[string]interface{}{"plan": plan}); err != nil {
		return err
	}

	s.auth.InvalidateCachedTenant(ctx, tenant.KeyPrefix)
	return nil
}

// ResetQuota refills a tenant's daily bucket ahead of the UTC boundary.
func (s *TenantService) ResetQuota(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findTenant(ctx, id); err != nil {
		return err
	}
	s.limiter.Reset(id)
	return nil
}

func (s *TenantService) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.findTenant(ctx, id)
}

func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	return s.store.List(ctx)
}

func (s *TenantService) issueKey(live bool) (key, prefix, hash string, err error) {
	key, err = s.auth.GenerateAPIKey(live)
	if err != nil {
		return "", "", "", err
	}

	prefix, ok := ExtractPrefix(key)
	if !ok {
		return "", "", "", errors.New("generated key failed prefix extraction")
	}

	hash, err = s.auth.HashAPIKey(key)
	if err != nil {
		return "", "", "", err
	}

	return key, prefix, hash, nil
}

func (s *TenantService) findTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}
