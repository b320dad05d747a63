package enums

// OrderStatus is the single lifecycle vocabulary for orders. It maps to the
// order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusAssignedToDelivery OrderStatus = "assigned_to_delivery"
	OrderStatusDeliveryAccepted   OrderStatus = "delivery_accepted"
	OrderStatusDeliveryRejected   OrderStatus = "delivery_rejected"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusAssignedToDelivery,
	OrderStatusDeliveryAccepted,
	OrderStatusDeliveryRejected,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderTransitions lists, per status, the statuses it may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:            {OrderStatusConfirmed, OrderStatusAssignedToDelivery, OrderStatusCancelled},
	OrderStatusConfirmed:          {OrderStatusAssignedToDelivery, OrderStatusCancelled},
	OrderStatusAssignedToDelivery: {OrderStatusDeliveryAccepted, OrderStatusDeliveryRejected, OrderStatusCancelled},
	OrderStatusDeliveryRejected:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusDeliveryAccepted:   {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery:     {OrderStatusDelivered},
	OrderStatusDelivered:          {},
	OrderStatusCancelled:          {},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	return member(s, validOrderStatuses)
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the table allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return member(next, orderTransitions[s])
}

// OrderStatusPredecessors returns every status that may move to target, in
// declaration order.
func OrderStatusPredecessors(target OrderStatus) []OrderStatus {
	out := []OrderStatus{}
	for _, from := range validOrderStatuses {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

// OrderStatuses returns a copy of every known status.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), validOrderStatuses...)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, validOrderStatuses)
}
