package domain

import "time"

type OptimisationType string

const (
	OptimisationSolo     OptimisationType = "solo"
	OptimisationAdvanced OptimisationType = "advanced"
)

// Actor that started an optimisation: a dispatcher or a driver planning
// their own day.
type Actor struct {
	MemberID int64
	IsDriver bool
}

// Optimisation owns the routes produced for one merchant and day.
// SourceID points at the optimisation whose routes a refresh or move
// operation patches.
type Optimisation struct {
	ID                int64
	Day               time.Time
	MerchantID        int64
	Type              OptimisationType
	CreatedBy         *Actor
	SourceID          int64
	CustomersNotified bool
}

func (o *Optimisation) CreatedByDriver() bool {
	return o.CreatedBy != nil && o.CreatedBy.IsDriver
}
