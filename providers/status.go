package providers

import (
	"sort"
	"strings"
	"time"

	"courier-service/models"
)

// NormalizeStatus folds a courier's free-text status into a shipment status.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.ShipmentStatusBooked
	case strings.Contains(s, "cancel"):
		return models.ShipmentStatusCancelled
	case strings.Contains(s, "rto"), strings.Contains(s, "return"):
		return models.ShipmentStatusRTO
	case strings.Contains(s, "undeliver"), strings.Contains(s, "out for delivery"):
		return models.ShipmentStatusInTransit
	case strings.Contains(s, "deliver"):
		return models.ShipmentStatusDelivered
	case strings.Contains(s, "manifest"), strings.Contains(s, "booked"),
		strings.Contains(s, "pending pickup"), strings.Contains(s, "not picked"),
		strings.Contains(s, "soft data"):
		return models.ShipmentStatusBooked
	case strings.Contains(s, "lost"), strings.Contains(s, "damage"):
		return models.ShipmentStatusFailed
	default:
		return models.ShipmentStatusInTransit
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02012006 1504",
	"02-01-2006 15:04:05",
	"02 Jan 2006 15:04",
	"02-Jan-2006 15:04",
	"02 Jan, 2006",
	"02-01-2006",
	"02012006",
	"2006-01-02",
}

// parseTime accepts the timestamp layouts seen across courier APIs. Times
// without a zone are read as IST.
func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, ist); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var ist = time.FixedZone("IST", 5*3600+1800)

func timePtr(raw string) *time.Time {
	if t, ok := parseTime(raw); ok {
		return &t
	}
	return nil
}

// sortHistory orders tracking events newest first.
func sortHistory(events []models.TrackingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

func grams(kg float64) int {
	return int(kg*1000 + 0.5)
}

func paymentLabel(p models.PaymentType, prepaid, cod string) string {
	if p == models.PaymentCOD {
		return cod
	}
	return prepaid
}
