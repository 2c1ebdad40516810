package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventClick            EventType = "click"
	EventHover            EventType = "hover"
	EventScroll           EventType = "scroll"
	EventPageView         EventType = "page_view"
	EventCheckoutStart    EventType = "checkout_start"
	EventCheckoutComplete EventType = "checkout_complete"
)

func ValidEventType(t string) bool {
	switch EventType(t) {
	case EventClick, EventHover, EventScroll, EventPageView, EventCheckoutStart, EventCheckoutComplete:
		return true
	}
	return false
}

// Page names carried in the "page" payload field.
const (
	PagePricing = "pricing"
	PageProduct = "product"
)

// BehavioralEvent is written by the ingestion pipeline and only read here.
type BehavioralEvent struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	UserID    string         `json:"user_id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Page returns the payload page name, or "" when absent or not a string.
func (e BehavioralEvent) Page() string {
	p, _ := e.Payload["page"].(string)
	return p
}

// DwellMillis returns the payload dwell time. Malformed values read as zero.
func (e BehavioralEvent) DwellMillis() float64 {
	switch v := e.Payload["dwell_ms"].(type) {
	case float64:
		if v > 0 {
			return v
		}
	case float32:
		if v > 0 {
			return float64(v)
		}
	case int:
		if v > 0 {
			return float64(v)
		}
	case int64:
		if v > 0 {
			return float64(v)
		}
	}
	return 0
}
