package ports

import (
	"context"
	"route-results-service/internal/domain"
	"time"
)

// Port: persisted optimisations, routes and points.
type RouteRepository interface {
	GetOptimisation(ctx context.Context, id int64) (*domain.Optimisation, error)
	SetCustomersNotified(ctx context.Context, optimisationID int64, notified bool) error
	GetDriver(ctx context.Context, memberID int64) (*domain.Driver, error)

	// Return routes of an optimisation ordered by id.
	ListRoutes(ctx context.Context, optimisationID int64) ([]*domain.Route, error)
	GetRoute(ctx context.Context, id int64) (*domain.Route, error)
	// Return colours of the driver's created or running routes on day.
	UsedColors(ctx context.Context, driverID int64, day time.Time) ([]string, error)
	CreateRoute(ctx context.Context, route *domain.Route) error
	UpdateRoute(ctx context.Context, route *domain.Route) error

	// Return the points of a route ordered by number.
	ListPoints(ctx context.Context, routeID int64) ([]*domain.Point, error)
	GetPoints(ctx context.Context, ids []int64) ([]*domain.Point, error)
	// Insert points and set their IDs.
	InsertPoints(ctx context.Context, points []*domain.Point) error
	// Update every column of already persisted points.
	UpdatePoints(ctx context.Context, points []*domain.Point) error
	// Persist only the number and next_point columns.
	SetOrdering(ctx context.Context, points []*domain.Point) error
	// Delete break points of the route whose ids are not in keep.
	DeleteBreaksExcept(ctx context.Context, routeID int64, keep []int64) (int, error)

	// Insert a waypoint location and set its ID.
	CreateLocation(ctx context.Context, loc *domain.Location) error
}

// Port: the slice of the order subsystem route reconciliation touches.
type OrderRepository interface {
	// Return the merchant's orders among ids.
	ListOrders(ctx context.Context, merchantID int64, ids []int64) ([]*domain.Order, error)
	// Move orders to status. Moving to not_assigned clears the driver;
	// otherwise a zero driverID leaves the driver untouched.
	BulkStatusChange(ctx context.Context, ids []int64, to domain.OrderStatus, driverID int64) error
}

// Repository is the full persistence boundary seen inside one unit of work.
type Repository interface {
	RouteRepository
	OrderRepository
}

// UnitOfWork runs fn against a transaction-scoped Repository. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
