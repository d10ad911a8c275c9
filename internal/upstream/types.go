package upstream

import "encoding/json"

// ErrCodeAlreadyExists is the provider's numeric code for a tracking
// number that is already registered. Batch reconciliation treats it as a
// success and reuses the returned correlation ID.
const ErrCodeAlreadyExists = 4101

// Meta is the provider's response envelope. Codes outside 200-299
// indicate failure.
type Meta struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Response is the generic provider response; Data varies by endpoint.
type Response struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

func (r *Response) Success() bool {
	return r.Meta.Code >= 200 && r.Meta.Code < 300
}

// Shipment is one tracking registration in a batch-create request.
type Shipment struct {
	TrackingNumber     string `json:"tracking_number"`
	CourierCode        string `json:"courier_code"`
	OrderNumber        string `json:"order_number,omitempty"`
	OriginCountry      string `json:"origin_country_iso2,omitempty"`
	DestinationCountry string `json:"destination_country_iso2,omitempty"`
}

// BatchData is the batch-create response payload: the provider
// partitions submitted items into success and error lists.
type BatchData struct {
	Success []BatchItem  `json:"success"`
	Error   []BatchError `json:"error"`
}

// BatchItem is a successfully registered tracking.
type BatchItem struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"tracking_number"`
	CourierCode    string `json:"courier_code"`
}

// BatchError is a rejected tracking with the provider's error detail.
// The provider still returns its correlation ID for already-exists
// rejections.
type BatchError struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"tracking_number"`
	CourierCode    string `json:"courier_code"`
	ErrorCode      int    `json:"errorCode"`
	ErrorMessage   string `json:"errorMessage"`
}

// TrackingItem is the provider's view of a single tracked shipment.
type TrackingItem struct {
	ID                   string         `json:"id"`
	TrackingNumber       string         `json:"tracking_number"`
	CourierCode          string         `json:"courier_code"`
	DeliveryStatus       string         `json:"delivery_status"`
	Substatus            string         `json:"substatus"`
	SignedBy             string         `json:"signed_by"`
	TransitTime          int            `json:"transit_time"`
	LatestEvent          string         `json:"latest_event"`
	LatestCheckpointTime string         `json:"latest_checkpoint_time"`
	OriginInfo           CheckpointInfo `json:"origin_info"`
	DestinationInfo      CheckpointInfo `json:"destination_info"`
}

type CheckpointInfo struct {
	Trackinfo []Checkpoint `json:"trackinfo"`
}

// Checkpoint is one scan event in a shipment's history.
type Checkpoint struct {
	Date      string `json:"checkpoint_date"`
	Status    string `json:"checkpoint_delivery_status"`
	Substatus string `json:"checkpoint_delivery_substatus"`
	Detail    string `json:"tracking_detail"`
	Location  string `json:"location"`
}

// Checkpoints returns origin and destination scan events as one list,
// origin first.
func (t *TrackingItem) Checkpoints() []Checkpoint {
	events := make([]Checkpoint, 0, len(t.OriginInfo.Trackinfo)+len(t.DestinationInfo.Trackinfo))
	events = append(events, t.OriginInfo.Trackinfo...)
	events = append(events, t.DestinationInfo.Trackinfo...)
	return events
}

// Courier is a candidate carrier from courier detection.
type Courier struct {
	CourierName string `json:"courier_name"`
	CourierCode string `json:"courier_code"`
}
