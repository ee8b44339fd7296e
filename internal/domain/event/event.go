package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by a case transition
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	CaseNo        string                 `json:"case_no"`
	ActorID       *int64                 `json:"actor_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID
func NewEvent(eventType Type, caseNo string, actorID *int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		CaseNo:        caseNo,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain,
// usually the HTTP request id
func NewEventWithCorrelation(eventType Type, caseNo string, actorID *int64, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, caseNo, actorID, payload)
	if correlationID != "" {
		evt.CorrelationID = correlationID
	}
	return evt
}

// WithPayload returns a copy of the event with an extra payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	cp := *e
	cp.Payload = payload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

type correlationKey struct{}

// ContextWithCorrelation attaches a correlation id (usually the request id)
// to ctx so events raised further down carry it
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationFromContext returns the correlation id carried by ctx, or ""
func CorrelationFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
