package enums

import "slices"

// OrderStatus is the fulfillment-facing lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	return slices.Contains(validOrderStatuses, o)
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(value, validOrderStatuses, "order status")
}

// IsTerminal reports whether no further lifecycle transition is allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCancelled
}

// Cancellable reports whether the order can still be reversed by the buyer or an admin.
func (o OrderStatus) Cancellable() bool {
	return o == OrderStatusPending || o == OrderStatusProcessing
}
