package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry. Every lending event goes to the
// configured lending topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LendingTopic == "" {
		return nil, fmt.Errorf("lending topic is required")
	}
	topic := cfg.LendingTopic

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventAssignmentCreated,
			AggregateType:  enums.AggregateAssignment,
			PayloadFactory: func() any { return &payloads.AssignmentCreatedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentDissolved,
			AggregateType:  enums.AggregateAssignment,
			PayloadFactory: func() any { return &payloads.AssignmentDissolvedEvent{} },
		},
		{
			EventType:      enums.EventDeviceStatusChanged,
			AggregateType:  enums.AggregateDevice,
			PayloadFactory: func() any { return &payloads.DeviceStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventDeviceDeleted,
			AggregateType:  enums.AggregateDevice,
			PayloadFactory: func() any { return &payloads.DeviceDeletedEvent{} },
		},
		{
			EventType:      enums.EventPersonDeleted,
			AggregateType:  enums.AggregatePerson,
			PayloadFactory: func() any { return &payloads.PersonDeletedEvent{} },
		},
		{
			EventType:      enums.EventContractAttached,
			AggregateType:  enums.AggregateContract,
			PayloadFactory: func() any { return &payloads.ContractAttachedEvent{} },
		},
		{
			EventType:      enums.EventContractUnmatched,
			AggregateType:  enums.AggregateContract,
			PayloadFactory: func() any { return &payloads.ContractUnmatchedEvent{} },
		},
		{
			EventType:      enums.EventInventoryImported,
			AggregateType:  enums.AggregateImport,
			PayloadFactory: func() any { return &payloads.InventoryImportedEvent{} },
		},
		{
			EventType:      enums.EventPersonsImported,
			AggregateType:  enums.AggregateImport,
			PayloadFactory: func() any { return &payloads.PersonsImportedEvent{} },
		},
	} {
		desc.Topic = topic
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
