package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/ratelimit"
	"github.com/mailit/tracking-gateway/internal/service"
	"github.com/mailit/tracking-gateway/internal/status"
	"github.com/mailit/tracking-gateway/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memTrackingStore struct {
	records map[string]*models.TrackingRecord
}

func newMemTrackingStore() *memTrackingStore {
	return &memTrackingStore{records: map[string]*models.TrackingRecord{}}
}

func (m *memTrackingStore) Create(ctx context.Context, record *models.TrackingRecord) error {
	record.ID = uuid.New()
	m.records[record.TrackingID] = record
	return nil
}

func (m *memTrackingStore) Exists(ctx context.Context, tenantID uuid.UUID, trackingNumber, courierCode string) (bool, error) {
	for _, r := range m.records {
		if r.TenantID == tenantID && r.TrackingNumber == trackingNumber && r.CourierCode == courierCode {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTrackingStore) FindByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error) {
	return m.records[trackingID], nil
}

func (m *memTrackingStore) FindByTrackingIDs(ctx context.Context, tenantID uuid.UUID, trackingIDs []string) ([]models.TrackingRecord, error) {
	var out []models.TrackingRecord
	for _, id := range trackingIDs {
		if r, ok := m.records[id]; ok && r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memTrackingStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter status.Status, offset, limit int) ([]models.TrackingRecord, int64, error) {
	var out []models.TrackingRecord
	for _, r := range m.records {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memTrackingStore) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus status.Status) error {
	return nil
}

func (m *memTrackingStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	for key, r := range m.records {
		if r.ID == id {
			delete(m.records, key)
		}
	}
	return nil
}

type stubUpstream struct {
	batchData *upstream.BatchData
	batchErr  error
}

func (s *stubUpstream) CreateBatch(ctx context.Context, shipments []upstream.Shipment) (*upstream.BatchData, error) {
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	if s.batchData != nil {
		return s.batchData, nil
	}
	data := &upstream.BatchData{}
	for _, sh := range shipments {
		data.Success = append(data.Success, upstream.BatchItem{
			ID:             "up-" + sh.TrackingNumber,
			TrackingNumber: sh.TrackingNumber,
			CourierCode:    sh.CourierCode,
		})
	}
	return data, nil
}

func (s *stubUpstream) GetTracking(ctx context.Context, trackingNumber string) (*upstream.TrackingItem, error) {
	return nil, nil
}

func (s *stubUpstream) GetBatch(ctx context.Context, trackingNumbers []string) ([]upstream.TrackingItem, error) {
	return nil, nil
}

func (s *stubUpstream) DeleteTracking(ctx context.Context, courierCode, trackingNumber string) error {
	return nil
}

func (s *stubUpstream) DetectCourier(ctx context.Context, trackingNumber string) ([]upstream.Courier, error) {
	return nil, nil
}

func setupRouter(tenant *models.Tenant, store *memTrackingStore, client *stubUpstream, limiter *ratelimit.Limiter) *gin.Engine {
	svc := service.NewTrackingService(store, client)
	h := NewTrackingHandler(svc, limiter)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("tenant", tenant)
	})

	router.POST("/api/v1/trackings", h.CreateBatch)
	router.GET("/api/v1/trackings/:trackingId", h.Get)
	router.DELETE("/api/v1/trackings/:trackingId", h.Delete)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreateBatchReturns201WhenAnyCreated(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, ratelimit.NewLimiter())

	w := postJSON(router, "/api/v1/trackings", gin.H{
		"trackings": []gin.H{
			{"tracking_number": "1Z999", "courier_code": "ups"},
		},
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool                      `json:"success"`
		Created []service.CreatedTracking `json:"created"`
		Failed  []service.FailedTracking  `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Created, 1)
	assert.Empty(t, resp.Failed)
	assert.Contains(t, resp.Created[0].TrackingID, "trk_")
}

func TestCreateBatchReturns400WhenAllFailed(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	client := &stubUpstream{
		batchErr: &upstream.UnavailableError{Message: "tracking provider unavailable", RetryAfter: 30},
	}
	router := setupRouter(tenant, newMemTrackingStore(), client, ratelimit.NewLimiter())

	w := postJSON(router, "/api/v1/trackings", gin.H{
		"trackings": []gin.H{
			{"tracking_number": "1Z999", "courier_code": "ups"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestCreateBatchRejectsMissingFields(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, ratelimit.NewLimiter())

	w := postJSON(router, "/api/v1/trackings", gin.H{
		"trackings": []gin.H{{"tracking_number": "1Z999"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCreateBatchOversizedSpendsNoToken(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	limiter := ratelimit.NewLimiter()
	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, limiter)

	items := make([]gin.H, 11)
	for i := range items {
		items[i] = gin.H{"tracking_number": "N" + string(rune('a'+i)), "courier_code": "ups"}
	}

	w := postJSON(router, "/api/v1/trackings", gin.H{"trackings": items})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BATCH_TOO_LARGE")
	assert.Equal(t, tenant.Plan.RequestsPerDay(), limiter.Remaining(tenant))
}

func TestCreateBatchQuotaExceeded(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	limiter := ratelimit.NewLimiter()
	for i := 0; i < tenant.Plan.RequestsPerDay(); i++ {
		require.NoError(t, limiter.CheckQuota(tenant))
	}

	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, limiter)

	w := postJSON(router, "/api/v1/trackings", gin.H{
		"trackings": []gin.H{{"tracking_number": "1Z999", "courier_code": "ups"}},
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "QUOTA_EXCEEDED")
	assert.Contains(t, w.Body.String(), "retry_after")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGetUnknownTrackingReturns404(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, ratelimit.NewLimiter())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trackings/trk_missing00000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestDeleteReturns204EvenWhenUnknown(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New(), Plan: models.PlanFree, IsActive: true}
	router := setupRouter(tenant, newMemTrackingStore(), &stubUpstream{}, ratelimit.NewLimiter())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/trackings/trk_missing00000", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}
