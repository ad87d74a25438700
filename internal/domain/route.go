package domain

import "time"

type RouteState string

const (
	RouteCreated  RouteState = "created"
	RouteRunning  RouteState = "running"
	RouteFinished RouteState = "finished"
	RouteFailed   RouteState = "failed"
)

// Represents one driver's persisted route for one optimisation.
// Color must be unique among the driver's active routes on the same day.
type Route struct {
	ID              int64
	OptimisationID  int64
	DriverID        int64
	Color           string
	Options         map[string]any
	State           RouteState
	TotalTime       int
	DrivingTime     int
	DrivingDistance int
	StartTime       time.Time
	EndTime         time.Time
}

// CopyMetrics overwrites the aggregate metrics with the values of src.
func (r *Route) CopyMetrics(src *Route) {
	r.DrivingDistance = src.DrivingDistance
	r.DrivingTime = src.DrivingTime
	r.TotalTime = src.TotalTime
	r.StartTime = src.StartTime
	r.EndTime = src.EndTime
}

// Represents one stop of a persisted route.
//
// Number is 1-based and contiguous within a route. NextPointID links a
// location-bearing point to the next location-bearing point of the same
// route; zero terminates the chain. Breaks never take part in the chain.
type Point struct {
	ID                       int64
	RouteID                  int64
	Number                   int
	Kind                     PointKind
	Ref                      EntityRef
	NextPointID              int64
	ServiceTime              int
	DrivingTime              int
	Distance                 int
	StartTime                time.Time
	EndTime                  time.Time
	StartTimeKnownToCustomer *time.Time
	UtilizedCapacity         float64
	PathPolyline             string

	// Coordinates of the referenced location, set for location points only.
	Waypoint *Coordinates
	// Waypoint row to create when the point is first saved. Ref.ID stays
	// zero until then.
	NewLocation *Location
}

func (p *Point) Persisted() bool { return p.ID != 0 }

func (p *Point) HasLocation() bool {
	return p.Kind != KindBreak && !p.Ref.IsZero()
}

// CopyPosition copies the position-and-metrics fields of src onto p,
// leaving identity, kind and reference untouched.
func (p *Point) CopyPosition(src *Point) {
	p.Number = src.Number
	p.ServiceTime = src.ServiceTime
	p.DrivingTime = src.DrivingTime
	p.Distance = src.Distance
	p.StartTime = src.StartTime
	p.EndTime = src.EndTime
	p.UtilizedCapacity = src.UtilizedCapacity
	p.PathPolyline = src.PathPolyline
}

// CustomerTimeChanged reports whether a delivery point's planned start
// differs from the time the customer was told.
func (p *Point) CustomerTimeChanged() bool {
	if p.Kind != KindDelivery {
		return false
	}
	if p.StartTimeKnownToCustomer == nil {
		return !p.StartTime.IsZero()
	}
	return !p.StartTimeKnownToCustomer.Equal(p.StartTime)
}
