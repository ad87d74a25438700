package domain

type OrderStatus string

const (
	StatusNotAssigned OrderStatus = "not_assigned"
	StatusAssigned    OrderStatus = "assigned"
	StatusPickUp      OrderStatus = "pickup"
	StatusPickedUp    OrderStatus = "picked_up"
	StatusInProgress  OrderStatus = "in_progress"
	StatusDelivered   OrderStatus = "delivered"
	StatusFailed      OrderStatus = "failed"
)

// Order as seen by route reconciliation. Only status and driver are
// mutated here; everything else belongs to the order subsystem.
type Order struct {
	ID         int64
	MerchantID int64
	DriverID   int64
	Status     OrderStatus
}

type Driver struct {
	MemberID  int64
	FirstName string
}
