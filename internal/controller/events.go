package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topic is the Watermill topic session events are published to.
const Topic = "signet.session"

// Session event types.
const (
	EventConnected       = "session.connected"
	EventDisconnected    = "session.disconnected"
	EventAccountChanged  = "session.account_changed"
	EventChainChanged    = "session.chain_changed"
	EventMessageSigned   = "message.signed"
	EventMessageVerified = "message.verified"
)

// SessionEvent is the payload of a published event.
type SessionEvent struct {
	Type      string    `json:"type"`
	Account   string    `json:"account,omitempty"`
	ChainID   uint64    `json:"chain_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Verified  string    `json:"verified,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher sends session events to a Watermill publisher.
// A nil *EventPublisher publishes nothing.
type EventPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewEventPublisher(publisher message.Publisher) *EventPublisher {
	return &EventPublisher{publisher: publisher, topic: Topic}
}

func (p *EventPublisher) Publish(ev SessionEvent) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", ev.Type)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
