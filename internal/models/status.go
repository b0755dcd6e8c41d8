package models

// orderTransitions lists the legal edges of the order lifecycle.
// delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ValidOrderStatuses returns the fixed set of order states in lifecycle order.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is a legal edge. Re-asserting the
// current status is always allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return to.Valid()
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
