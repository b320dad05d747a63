package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return member(a, validAggregateTypes)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderLabAssigned      OutboxEventType = "order_lab_assigned"
	EventOrderDeliveryAssigned OutboxEventType = "order_delivery_assigned"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderAssignmentNudged OutboxEventType = "order_assignment_nudged"
	EventPaymentCaptured       OutboxEventType = "payment_captured"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderLabAssigned,
	EventOrderDeliveryAssigned,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderAssignmentNudged,
	EventPaymentCaptured,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return member(e, validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, validOutboxEventTypes)
}
