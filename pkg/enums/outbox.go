package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateDevice     OutboxAggregateType = "device"
	AggregatePerson     OutboxAggregateType = "person"
	AggregateAssignment OutboxAggregateType = "assignment"
	AggregateContract   OutboxAggregateType = "contract"
	AggregateImport     OutboxAggregateType = "import"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDevice,
	AggregatePerson,
	AggregateAssignment,
	AggregateContract,
	AggregateImport,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a lending domain event.
type OutboxEventType string

const (
	EventAssignmentCreated   OutboxEventType = "assignment_created"
	EventAssignmentDissolved OutboxEventType = "assignment_dissolved"
	EventDeviceStatusChanged OutboxEventType = "device_status_changed"
	EventContractAttached    OutboxEventType = "contract_attached"
	EventContractUnmatched   OutboxEventType = "contract_unmatched"
	EventPersonDeleted       OutboxEventType = "person_deleted"
	EventDeviceDeleted       OutboxEventType = "device_deleted"
	EventInventoryImported   OutboxEventType = "inventory_imported"
	EventPersonsImported     OutboxEventType = "persons_imported"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAssignmentCreated,
	EventAssignmentDissolved,
	EventDeviceStatusChanged,
	EventContractAttached,
	EventContractUnmatched,
	EventPersonDeleted,
	EventDeviceDeleted,
	EventInventoryImported,
	EventPersonsImported,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
