package enums

import "fmt"

// OrderStatus tracks the payment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusConfirmed   OrderStatus = "confirmed"
	OrderStatusDepositPaid OrderStatus = "deposit_paid"
	OrderStatusFullyPaid   OrderStatus = "fully_paid"
	OrderStatusCancelled   OrderStatus = "cancelled"
	OrderStatusRefunded    OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusDepositPaid,
	OrderStatusFullyPaid,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from the
// status. A fully paid order is settled but may still move to refunded.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
