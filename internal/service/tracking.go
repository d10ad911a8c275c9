package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mailit/tracking-gateway/internal/idgen"
	"github.com/mailit/tracking-gateway/internal/models"
	"github.com/mailit/tracking-gateway/internal/status"
	"github.com/mailit/tracking-gateway/internal/upstream"
)

var (
	ErrNotFound  = errors.New("tracking not found")
	ErrForbidden = errors.New("tracking belongs to another tenant")
)

// ValidationError reports rejected caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TrackingStore is the persistence surface the tracking service needs.
type TrackingStore interface {
	Create(ctx context.Context, record *models.TrackingRecord) error
	Exists(ctx context.Context, tenantID uuid.UUID, trackingNumber, courierCode string) (bool, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error)
	FindByTrackingIDs(ctx context.Context, tenantID uuid.UUID, trackingIDs []string) ([]models.TrackingRecord, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter status.Status, offset, limit int) ([]models.TrackingRecord, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus status.Status) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// UpstreamClient is the provider surface the tracking service needs.
type UpstreamClient interface {
	CreateBatch(ctx context.Context, shipments []upstream.Shipment) (*upstream.BatchData, error)
	GetTracking(ctx context.Context, trackingNumber string) (*upstream.TrackingItem, error)
	GetBatch(ctx context.Context, trackingNumbers []string) ([]upstream.TrackingItem, error)
	DeleteTracking(ctx context.Context, courierCode, trackingNumber string) error
	DetectCourier(ctx context.Context, trackingNumber string) ([]upstream.Courier, error)
}

// ShipmentInput is one requested registration in a batch create.
type ShipmentInput struct {
	TrackingNumber     string `json:"tracking_number" binding:"required"`
	CourierCode        string `json:"courier_code" binding:"required"`
	OrderID            string `json:"order_id"`
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`
}

// CreatedTracking is one successfully registered shipment.
type CreatedTracking struct {
	TrackingID     string        `json:"tracking_id"`
	TrackingNumber string        `json:"tracking_number"`
	CourierCode    string        `json:"courier_code"`
	Status         status.Status `json:"status"`
}

// FailedTracking is one rejected shipment with a per-item reason.
type FailedTracking struct {
	TrackingNumber string `json:"tracking_number"`
	CourierCode    string `json:"courier_code"`
	Error          string `json:"error"`
}

// BatchResult partitions a batch create: every requested item lands in
// exactly one of the two lists, in request order.
type BatchResult struct {
	Created []CreatedTracking `json:"created"`
	Failed  []FailedTracking  `json:"failed"`
}

// Success reports whether at least one item was created.
func (r *BatchResult) Success() bool { return len(r.Created) > 0 }

// TrackingEvent is one checkpoint on a shipment's journey.
type TrackingEvent struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
	Location string `json:"location"`
}

// TrackingDetail is the full read-path view of one shipment.
type TrackingDetail struct {
	TrackingID           string          `json:"tracking_id"`
	TrackingNumber       string          `json:"tracking_number"`
	CourierCode          string          `json:"courier_code"`
	Status               status.Status   `json:"status"`
	OrderID              string          `json:"order_id,omitempty"`
	OriginCountry        string          `json:"origin_country,omitempty"`
	DestinationCountry   string          `json:"destination_country,omitempty"`
	LatestEvent          string          `json:"latest_event,omitempty"`
	LatestCheckpointTime string          `json:"latest_checkpoint_time,omitempty"`
	Events               []TrackingEvent `json:"events,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TrackingSummary is the list-view projection of one shipment.
type TrackingSummary struct {
	TrackingID     string        `json:"tracking_id"`
	TrackingNumber string        `json:"tracking_number"`
	CourierCode    string        `json:"courier_code"`
	Status         status.Status `json:"status"`
	OrderID        string        `json:"order_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// ListResult is one page of a tenant's trackings.
type ListResult struct {
	Trackings  []TrackingSummary `json:"trackings"`
	Pagination Pagination        `json:"pagination"`
}

// TrackingService owns shipment registrations: batch create with
// per-item reconciliation, reads with best-effort upstream refresh,
// listing and idempotent deletion.
type TrackingService struct {
	store  TrackingStore
	client UpstreamClient

	newID func() string
}

func NewTrackingService(store TrackingStore, client UpstreamClient) *TrackingService {
	return &TrackingService{
		store:  store,
		client: client,
		newID:  idgen.New,
	}
}

type itemOutcome struct {
	created    bool
	upstreamID string
	reason     string
}

// CreateBatch registers a batch of shipments, reconciling the upstream
// provider's partial results into per-item outcomes. Upstream failures
// degrade items to the failed list instead of failing the batch; an
// error return means local persistence is broken.
func (s *TrackingService) CreateBatch(ctx context.Context, tenant *models.Tenant, items []ShipmentInput) (*BatchResult, error) {
	outcomes := make(map[string]*itemOutcome, len(items))

	// Pre-filter duplicates locally so known-duplicate items never
	// reach the provider.
	var pending []ShipmentInput
	for _, item := range items {
		key := itemKey(item.TrackingNumber, item.CourierCode)
		if _, seen := outcomes[key]; seen {
			continue
		}

		exists, err := s.store.Exists(ctx, tenant.ID, item.TrackingNumber, item.CourierCode)
		if err != nil {
			return nil, err
		}
		if exists {
			outcomes[key] = &itemOutcome{reason: "tracking already exists"}
			continue
		}

		outcomes[key] = &itemOutcome{}
		pending = append(pending, item)
	}

	if len(pending) > 0 {
		s.reconcileUpstream(ctx, pending, outcomes)
	}

	// Persist accepted items and assemble the partition in request
	// order. Every requested item lands in exactly one list.
	result := &BatchResult{
		Created: []CreatedTracking{},
		Failed:  []FailedTracking{},
	}
	emitted := make(map[string]bool, len(items))

	for _, item := range items {
		key := itemKey(item.TrackingNumber, item.CourierCode)
		if emitted[key] {
			continue
		}
		emitted[key] = true

		outcome := outcomes[key]
		if !outcome.created {
			result.Failed = append(result.Failed, FailedTracking{
				TrackingNumber: item.TrackingNumber,
				CourierCode:    item.CourierCode,
				Error:          outcome.reason,
			})
			continue
		}

		record := &models.TrackingRecord{
			TrackingID:         s.newID(),
			TenantID:           tenant.ID,
			TrackingNumber:     item.TrackingNumber,
			CourierCode:        item.CourierCode,
			UpstreamID:         outcome.upstreamID,
			Status:             status.Pending,
			OrderID:            item.OrderID,
			OriginCountry:      item.OriginCountry,
			DestinationCountry: item.DestinationCountry,
		}
		if err := s.store.Create(ctx, record); err != nil {
			log.Printf("failed to persist tracking %s/%s: %v", item.CourierCode, item.TrackingNumber, err)
			result.Failed = append(result.Failed, FailedTracking{
				TrackingNumber: item.TrackingNumber,
				CourierCode:    item.CourierCode,
				Error:          "failed to save tracking",
			})
			continue
		}

		result.Created = append(result.Created, CreatedTracking{
			TrackingID:     record.TrackingID,
			TrackingNumber: record.TrackingNumber,
			CourierCode:    record.CourierCode,
			Status:         record.Status,
		})
	}

	return result, nil
}

// reconcileUpstream submits the pending items and folds the provider's
// partitioned response back into per-item outcomes.
func (s *TrackingService) reconcileUpstream(ctx context.Context, pending []ShipmentInput, outcomes map[string]*itemOutcome) {
	shipments := make([]upstream.Shipment, 0, len(pending))
	for _, item := range pending {
		shipments = append(shipments, upstream.Shipment{
			TrackingNumber:     item.TrackingNumber,
			CourierCode:        item.CourierCode,
			OrderNumber:        item.OrderID,
			OriginCountry:      item.OriginCountry,
			DestinationCountry: item.DestinationCountry,
		})
	}

	data, err := s.client.CreateBatch(ctx, shipments)
	if err != nil {
		log.Printf("upstream batch create failed: %v", err)
		reason := "tracking provider unavailable"
		var unavailable *upstream.UnavailableError
		var upErr *upstream.Error
		if errors.As(err, &unavailable) {
			reason = unavailable.Message
		} else if errors.As(err, &upErr) {
			reason = upErr.Message
		}
		for _, item := range pending {
			outcomes[itemKey(item.TrackingNumber, item.CourierCode)].reason = reason
		}
		return
	}

	for _, item := range data.Success {
		key := itemKey(item.TrackingNumber, item.CourierCode)
		if outcome, ok := outcomes[key]; ok {
			outcome.created = true
			outcome.upstreamID = item.ID
		}
	}
	for _, item := range data.Error {
		key := itemKey(item.TrackingNumber, item.CourierCode)
		outcome, ok := outcomes[key]
		if !ok {
			continue
		}
		if item.ErrorCode == upstream.ErrCodeAlreadyExists {
			// The provider already tracks this shipment. That is a
			// success for our caller: adopt the provider's ID.
			outcome.created = true
			outcome.upstreamID = item.ID
			continue
		}
		outcome.reason = item.ErrorMessage
		if outcome.reason == "" {
			outcome.reason = "rejected by tracking provider"
		}
	}

	// Items the provider did not mention at all must still surface.
	for _, item := range pending {
		outcome := outcomes[itemKey(item.TrackingNumber, item.CourierCode)]
		if !outcome.created && outcome.reason == "" {
			outcome.reason = "no result from tracking provider"
		}
	}
}

// Get returns one shipment with a best-effort upstream status refresh.
// Upstream failures degrade to the stored snapshot.
func (s *TrackingService) Get(ctx context.Context, tenant *models.Tenant, trackingID string) (*TrackingDetail, error) {
	record, err := s.findOwned(ctx, tenant, trackingID)
	if err != nil {
		return nil, err
	}

	detail := detailFromRecord(record)

	item, err := s.client.GetTracking(ctx, record.TrackingNumber)
	if err != nil {
		log.Printf("upstream refresh failed for %s: %v", record.TrackingID, err)
		return detail, nil
	}
	if item != nil {
		s.applyRefresh(ctx, record, detail, item)
	}

	return detail, nil
}

// GetBatch returns details for a set of the tenant's tracking IDs in a
// single upstream round trip. Unknown IDs are silently skipped.
func (s *TrackingService) GetBatch(ctx context.Context, tenant *models.Tenant, trackingIDs []string) ([]TrackingDetail, error) {
	records, err := s.store.FindByTrackingIDs(ctx, tenant.ID, trackingIDs)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []TrackingDetail{}, nil
	}

	numbers := make([]string, 0, len(records))
	for _, record := range records {
		numbers = append(numbers, record.TrackingNumber)
	}

	byNumber := make(map[string]upstream.TrackingItem)
	items, err := s.client.GetBatch(ctx, numbers)
	if err != nil {
		log.Printf("upstream batch refresh failed: %v", err)
	} else {
		for _, item := range items {
			byNumber[item.TrackingNumber] = item
		}
	}

	details := make([]TrackingDetail, 0, len(records))
	for i := range records {
		record := &records[i]
		detail := detailFromRecord(record)
		if item, ok := byNumber[record.TrackingNumber]; ok {
			s.applyRefresh(ctx, record, detail, &item)
		}
		details = append(details, *detail)
	}

	return details, nil
}

// List returns one page of the tenant's trackings, newest first,
// optionally filtered by normalized status.
func (s *TrackingService) List(ctx context.Context, tenant *models.Tenant, statusFilter string, page, size int) (*ListResult, error) {
	var filter status.Status
	if statusFilter != "" {
		parsed, ok := status.Parse(statusFilter)
		if !ok {
			return nil, &ValidationError{Message: "unknown status filter: " + statusFilter}
		}
		filter = parsed
	}

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	records, total, err := s.store.ListByTenant(ctx, tenant.ID, filter, (page-1)*size, size)
	if err != nil {
		return nil, err
	}

	summaries := make([]TrackingSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, TrackingSummary{
			TrackingID:     record.TrackingID,
			TrackingNumber: record.TrackingNumber,
			CourierCode:    record.CourierCode,
			Status:         record.Status,
			OrderID:        record.OrderID,
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		})
	}

	totalPages := (total + int64(size) - 1) / int64(size)

	return &ListResult{
		Trackings: summaries,
		Pagination: Pagination{
			Page:       page,
			Size:       size,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Delete removes a tracking. The local soft delete is authoritative;
// the upstream cleanup is best effort. Deleting an unknown ID succeeds
// so retried deletes are safe.
func (s *TrackingService) Delete(ctx context.Context, tenant *models.Tenant, trackingID string) error {
	record, err := s.findOwned(ctx, tenant, trackingID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.SoftDelete(ctx, record.ID); err != nil {
		return err
	}

	if err := s.client.DeleteTracking(ctx, record.CourierCode, record.TrackingNumber); err != nil {
		// The provider copy will be orphaned until it expires; the
		// local delete already succeeded.
		log.Printf("upstream delete failed for %s: %v", record.TrackingID, err)
	}

	return nil
}

// DetectCourier asks the provider which couriers match a raw tracking
// number.
func (s *TrackingService) DetectCourier(ctx context.Context, trackingNumber string) ([]upstream.Courier, error) {
	if trackingNumber == "" {
		return nil, &ValidationError{Message: "tracking_number is required"}
	}
	return s.client.DetectCourier(ctx, trackingNumber)
}

func (s *TrackingService) findOwned(ctx context.Context, tenant *models.Tenant, trackingID string) (*models.TrackingRecord, error) {
	if !idgen.IsValid(trackingID) {
		return nil, ErrNotFound
	}

	record, err := s.store.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	if record.TenantID != tenant.ID {
		return nil, ErrForbidden
	}

	return record, nil
}

// applyRefresh folds a fresh upstream snapshot into the detail view and
// persists a status change when one happened.
func (s *TrackingService) applyRefresh(ctx context.Context, record *models.TrackingRecord, detail *TrackingDetail, item *upstream.TrackingItem) {
	fresh := status.Normalize(item.DeliveryStatus)
	if fresh != record.Status {
		if err := s.store.UpdateStatus(ctx, record.ID, fresh); err != nil {
			log.Printf("failed to update status for %s: %v", record.TrackingID, err)
		} else {
			record.Status = fresh
		}
	}
	detail.Status = record.Status

	detail.LatestEvent = item.LatestEvent
	detail.LatestCheckpointTime = item.LatestCheckpointTime

	checkpoints := item.Checkpoints()
	if len(checkpoints) > 0 {
		events := make([]TrackingEvent, 0, len(checkpoints))
		for _, cp := range checkpoints {
			events = append(events, TrackingEvent{
				Date:     cp.Date,
				Status:   string(status.Normalize(cp.Status)),
				Detail:   cp.Detail,
				Location: cp.Location,
			})
		}
		detail.Events = events
	}
}

func detailFromRecord(record *models.TrackingRecord) *TrackingDetail {
	return &TrackingDetail{
		TrackingID:         record.TrackingID,
		TrackingNumber:     record.TrackingNumber,
		CourierCode:        record.CourierCode,
		Status:             record.Status,
		OrderID:            record.OrderID,
		OriginCountry:      record.OriginCountry,
		DestinationCountry: record.DestinationCountry,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

func itemKey(trackingNumber, courierCode string) string {
	return trackingNumber + "|" + courierCode
}
