package models

var orderStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusConfirmed: {},
	StatusPacked:    {},
	StatusShipped:   {},
	StatusDelivered: {},
	StatusCancelled: {},
}

// IsValidStatus reports whether s is one of the order/item status values
func IsValidStatus(s string) bool {
	_, ok := orderStatuses[s]
	return ok
}

// AggregateStatus maps the statuses of an order's items to the order status.
// Rules are checked in order and the first match wins:
//
//  1. all Delivered -> Delivered
//  2. all Cancelled -> Cancelled
//  3. any Shipped   -> Shipped
//  4. any Packed    -> Packed
//  5. any Confirmed -> Confirmed
//
// Otherwise, or when there are no items, current is returned unchanged.
func AggregateStatus(current string, items []string) string {
	if len(items) == 0 {
		return current
	}

	switch {
	case allOf(items, StatusDelivered):
		return StatusDelivered
	case allOf(items, StatusCancelled):
		return StatusCancelled
	case anyOf(items, StatusShipped):
		return StatusShipped
	case anyOf(items, StatusPacked):
		return StatusPacked
	case anyOf(items, StatusConfirmed):
		return StatusConfirmed
	}
	return current
}

func allOf(items []string, status string) bool {
	for _, s := range items {
		if s != status {
			return false
		}
	}
	return true
}

func anyOf(items []string, status string) bool {
	for _, s := range items {
		if s == status {
			return true
		}
	}
	return false
}
