package status

import (
	"log"
	"strings"
)

// Status is the normalized tracking status exposed to API clients,
// independent of the upstream provider's vocabulary.
type Status string

const (
	Pending        Status = "pending"
	NotFound       Status = "not_found"
	InTransit      Status = "in_transit"
	OutForDelivery Status = "out_for_delivery"
	Delivered      Status = "delivered"
	Exception      Status = "exception"
	Expired        Status = "expired"
	Returned       Status = "returned"
)

// Normalize maps an upstream provider status string to a Status.
// It is total: unknown or empty input yields Pending so an unrecognized
// vendor status never blocks a tracking update.
func Normalize(providerStatus string) Status {
	s := strings.ToLower(strings.TrimSpace(providerStatus))

	switch s {
	case "pending", "inforeceived":
		return Pending
	case "notfound":
		return NotFound
	case "transit":
		return InTransit
	case "pickup":
		return OutForDelivery
	case "delivered":
		return Delivered
	case "expired":
		return Expired
	case "undelivered", "exception":
		return Exception
	case "":
		log.Printf("Empty provider status received, defaulting to pending")
		return Pending
	default:
		log.Printf("Unknown provider status %q, defaulting to pending", providerStatus)
		return Pending
	}
}

// IsFinal reports whether a provider status indicates a terminal state
// with no further updates expected.
func IsFinal(providerStatus string) bool {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "delivered", "expired":
		return true
	default:
		return false
	}
}

// Parse converts a client-supplied status string (e.g. a list filter)
// into a Status. The match is case-insensitive.
func Parse(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case Pending:
		return Pending, true
	case NotFound:
		return NotFound, true
	case InTransit:
		return InTransit, true
	case OutForDelivery:
		return OutForDelivery, true
	case Delivered:
		return Delivered, true
	case Exception:
		return Exception, true
	case Expired:
		return Expired, true
	case Returned:
		return Returned, true
	default:
		return "", false
	}
}
