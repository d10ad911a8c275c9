package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mailit/tracking-gateway/internal/metrics"
	"github.com/mailit/tracking-gateway/internal/models"
)

// ErrInvalidKey is returned for every verification failure. The reason
// is recorded in metrics and logs (prefix only), never surfaced to the
// caller.
var ErrInvalidKey = errors.New("invalid API key")

var (
	prefixPattern = regexp.MustCompile(`^sk_(live|test)_[a-z0-9]{6,8}$`)

	keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

const (
	keySuffixLength = 24
	tenantCacheTTL  = 5 * time.Minute
)

// TenantStore is the tenant lookup surface the verifier needs.
type TenantStore interface {
	FindByPrefix(ctx context.Context, prefix string) (*models.Tenant, error)
}

// TenantCache is an optional read-through cache for tenant rows keyed
// by key prefix. The bcrypt comparison always runs, so the cache can
// never bypass verification.
type TenantCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AuthService verifies presented API keys against stored tenant
// records and issues new keys.
//
// Keys use the two-phase Stripe-style scheme: a short loggable prefix
// narrows the candidate tenant with an O(1) lookup, then the full key
// is checked against the tenant's bcrypt hash. Hashes are salted and
// non-deterministic, so a direct hash-keyed lookup is impossible by
// design.
type AuthService struct {
	store TenantStore
	cache TenantCache

	hashCost int
	now      func() time.Time
}

func NewAuthService(store TenantStore, cache TenantCache) *AuthService {
	return &AuthService{
		store:    store,
		cache:    cache,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// VerifyAPIKey validates a presented secret and returns the owning
// tenant. It is a pure function of the key and store state: safe to
// call concurrently, mutates nothing, and never logs the full key.
func (s *AuthService) VerifyAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	apiKey = strings.TrimSpace(apiKey)

	prefix, ok := ExtractPrefix(apiKey)
	if !ok {
		// Structurally invalid: fail fast without touching the store.
		metrics.AuthFailures.WithLabelValues("malformed").Inc()
		return nil, ErrInvalidKey
	}

	tenant, err := s.lookupTenant(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		metrics.AuthFailures.WithLabelValues("unknown_prefix").Inc()
		return nil, ErrInvalidKey
	}

	if !tenant.IsActive {
		metrics.AuthFailures.WithLabelValues("inactive").Inc()
		return nil, ErrInvalidKey
	}
	if tenant.Expired(s.now()) {
		metrics.AuthFailures.WithLabelValues("expired").Inc()
		return nil, ErrInvalidKey
	}
	if tenant.KeyHash == "" {
		// Revoked: prefix retained for audit, hash cleared.
		metrics.AuthFailures.WithLabelValues("revoked").Inc()
		return nil, ErrInvalidKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.KeyHash), []byte(apiKey)); err != nil {
		metrics.AuthFailures.WithLabelValues("mismatch").Inc()
		return nil, ErrInvalidKey
	}

	return tenant, nil
}

// GenerateAPIKey creates a new random key for the given environment.
// The plaintext is only ever visible at issuance.
func (s *AuthService) GenerateAPIKey(live bool) (string, error) {
	env := "test"
	if live {
		env = "live"
	}

	suffix, err := randomString(keySuffixLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	return "sk_" + env + "_" + suffix, nil
}

// HashAPIKey produces the bcrypt hash stored in place of the key.
func (s *AuthService) HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// InvalidateCachedTenant drops the cached tenant row for a prefix.
// Called after rotation, revocation or plan changes.
func (s *AuthService) InvalidateCachedTenant(ctx context.Context, prefix string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tenantCacheKey(prefix)); err != nil {
		// Stale cache entries expire within the TTL; verification still
		// bcrypt-compares, so this is a freshness issue only.
		log.Printf("failed to invalidate tenant cache for prefix %s: %v", prefix, err)
	}
}

// ExtractPrefix pulls the loggable prefix out of a full API key:
// sk_(live|test)_ followed by 6-8 lowercase alphanumerics. The longer
// variant is preferred so issued keys round-trip through the same
// function used at issuance.
func ExtractPrefix(apiKey string) (string, bool) {
	if len(apiKey) < 14 {
		return "", false
	}
	if !strings.HasPrefix(apiKey, "sk_live_") && !strings.HasPrefix(apiKey, "sk_test_") {
		return "", false
	}

	if len(apiKey) >= 16 && prefixPattern.MatchString(apiKey[:16]) {
		return apiKey[:16], true
	}
	if prefixPattern.MatchString(apiKey[:14]) {
		return apiKey[:14], true
	}

	return "", false
}

func (s *AuthService) lookupTenant(ctx context.Context, prefix string) (*models.Tenant, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, tenantCacheKey(prefix)); err == nil && cached != "" {
			var tenant models.Tenant
			if err := json.Unmarshal([]byte(cached), &tenant); err == nil {
				return &tenant, nil
			}
		}
	}

	tenant, err := s.store.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}

	if tenant != nil && s.cache != nil {
		if data, err := json.Marshal(tenant); err == nil {
			s.cache.Set(ctx, tenantCacheKey(prefix), data, tenantCacheTTL)
		}
	}

	return tenant, nil
}

func tenantCacheKey(prefix string) string {
	return "tenant:prefix:" + prefix
}

func randomString(length int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	var sb strings.Builder
	sb.Grow(length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(keyAlphabet[n.Int64()])
	}

	return sb.String(), nil
}
