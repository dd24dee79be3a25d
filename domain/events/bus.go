package events

import (
	"fmt"

	"go.uber.org/zap"
)

// Handler receives an event payload.
type Handler func(Payload)

// Bus dispatches graph events synchronously. Handlers for a type run in
// registration order, then wildcard handlers in registration order.
type Bus struct {
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus creates an event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[string][]Handler), logger: logger}
}

// On registers handler for eventType, or for every event with Wildcard.
func (b *Bus) On(eventType string, handler Handler) {
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit dispatches payload. The "type" field is set to eventType.
func (b *Bus) Emit(eventType string, payload Payload) {
	if payload == nil {
		payload = Payload{}
	}
	payload["type"] = eventType

	for _, h := range b.handlers[eventType] {
		b.call(eventType, h, payload)
	}
	if eventType == Wildcard {
		return
	}
	for _, h := range b.handlers[Wildcard] {
		b.call(eventType, h, payload)
	}
}

// HasHandlers reports whether anything listens to eventType.
func (b *Bus) HasHandlers(eventType string) bool {
	return len(b.handlers[eventType]) > 0 || len(b.handlers[Wildcard]) > 0
}

// A failing handler must not take the session down with it.
func (b *Bus) call(eventType string, h Handler, payload Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event_type", eventType),
				zap.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	h(payload)
}
