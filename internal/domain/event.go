package domain

import "time"

type EventType string

const (
	EventProgress            EventType = "progress"
	EventSkippedObjects      EventType = "skipped_objects"
	EventAssignedAfterRO     EventType = "assigned_after_ro"
	EventMoveJobs            EventType = "move_jobs"
	EventOptimisationChanged EventType = "optimisation_changed"
)

// Event is an entry of the optimisation activity feed.
type Event struct {
	OptimisationID int64
	Type           EventType
	Params         map[string]any
	At             time.Time
}

type PushType string

const (
	PushNewRoute           PushType = "NEW_ROUTE"
	PushChangedRoute       PushType = "CHANGED_ROUTE"
	PushOptimisationStatus PushType = "OPTIMIZATION_STATUS_CHANGE"
)

// PushMessage is a notification addressed to one driver's device.
type PushMessage struct {
	Type     PushType
	DriverID int64
	Text     string
	Data     map[string]any
}

const dayLayout = "2006-01-02"

// NewRoutePush tells a driver that an optimisation produced their route.
func NewRoutePush(opt *Optimisation, route *Route, driver *Driver) PushMessage {
	return routePush(PushNewRoute, "your route was optimised", opt, route, driver)
}

// RouteChangedPush tells a driver that their route was updated in place.
func RouteChangedPush(opt *Optimisation, route *Route, driver *Driver) PushMessage {
	return routePush(PushChangedRoute, "your route was updated", opt, route, driver)
}

func routePush(t PushType, text string, opt *Optimisation, route *Route, driver *Driver) PushMessage {
	if driver != nil && driver.FirstName != "" {
		text = driver.FirstName + ", " + text
	}
	day := opt.Day.Format(dayLayout)
	return PushMessage{
		Type:     t,
		DriverID: route.DriverID,
		Text:     text,
		Data: map[string]any{
			"route_id":          route.ID,
			"day":               day,
			"relevant_for_days": day,
		},
	}
}

// OptimisationStatusPush reports the outcome of a driver's own optimisation.
// routeID is zero when no route was produced.
func OptimisationStatusPush(opt *Optimisation, driverID, routeID int64, successful bool) PushMessage {
	status := "failed"
	if successful {
		status = "completed"
	}
	return PushMessage{
		Type:     PushOptimisationStatus,
		DriverID: driverID,
		Text:     "Route optimisation " + status,
		Data: map[string]any{
			"optimization_id": opt.ID,
			"route_id":        routeID,
			"status":          status,
		},
	}
}
