package outbox

import (
	"fmt"

	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// EventDescriptor links an event type to its destination topic and schema version.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	Topic         string
	SchemaVersion int
}

// EventRegistry maps each supported event type to its descriptor. Routing is
// resolved at emit time so the stored row already carries its topic.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BookingTopic == "" {
		return nil, fmt.Errorf("booking topic is required")
	}
	if cfg.InventoryTopic == "" {
		return nil, fmt.Errorf("inventory topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	bookingTopic := cfg.Prefixed(cfg.BookingTopic)
	inventoryTopic := cfg.Prefixed(cfg.InventoryTopic)
	notificationTopic := cfg.Prefixed(cfg.NotificationTopic)

	for _, eventType := range []enums.OutboxEventType{
		enums.EventBookingHeld,
		enums.EventBookingReview,
		enums.EventBookingConfirmed,
		enums.EventBookingPaid,
		enums.EventBookingCancelled,
		enums.EventBookingRefunded,
		enums.EventBookingExpired,
	} {
		reg.register(EventDescriptor{
			EventType:     eventType,
			Topic:         bookingTopic,
			SchemaVersion: 1,
		})
	}
	reg.register(EventDescriptor{
		EventType:     enums.EventReservationReleased,
		Topic:         inventoryTopic,
		SchemaVersion: 1,
	})
	reg.register(EventDescriptor{
		EventType:     enums.EventNotificationRequested,
		Topic:         notificationTopic,
		SchemaVersion: 1,
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	r.entries[desc.EventType] = desc
}

// Resolve returns the descriptor for the event type.
func (r *EventRegistry) Resolve(eventType enums.OutboxEventType) (EventDescriptor, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return EventDescriptor{}, fmt.Errorf("event type %s is not registered", eventType)
	}
	return desc, nil
}
