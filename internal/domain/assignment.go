package domain

import (
	"slices"
	"time"
)

// Payload used to reference an existing entity (ID set) or to create a
// new location row on demand (ID zero).
type Prototype struct {
	ID          int64
	Address     string
	Coordinates Coordinates
}

// Represents one stop planned by the solver.
type StopPlan struct {
	Kind             PointKind
	Entity           EntityType
	Prototype        *Prototype
	Location         *Coordinates
	ServiceTime      int
	DrivingTime      int
	Distance         int
	StartTime        time.Time
	EndTime          time.Time
	UtilizedCapacity float64
	Polyline         string
}

// Represents one driver's ordered tour produced by the solver.
type DriverTour struct {
	Stops           []StopPlan
	DrivingTime     int
	FullTime        int
	DrivingDistance int
	RatioToMin      float64
	RatioToAvg      float64
}

// Failure describes why the solver produced no usable assignment.
type Failure struct {
	Kind    string
	Message string
}

// AssignmentResult is the solver output for one optimisation run.
// Tours are keyed by driver member id.
type AssignmentResult struct {
	Good            bool
	Tours           map[int64]*DriverTour
	SkippedOrders   []int64
	SkippedDrivers  []int64
	DrivingTime     int
	DrivingDistance int
	Failure         *Failure
}

// NewAssignmentResult builds a good result and fills each tour's ratio to
// the shortest and to the average tour duration.
func NewAssignmentResult(
	tours map[int64]*DriverTour,
	skippedOrders []int64,
	skippedDrivers []int64,
	drivingTime int,
	drivingDistance int,
) *AssignmentResult {
	r := &AssignmentResult{
		Good:            true,
		Tours:           tours,
		SkippedOrders:   skippedOrders,
		SkippedDrivers:  skippedDrivers,
		DrivingTime:     drivingTime,
		DrivingDistance: drivingDistance,
	}
	r.computeRatios()
	return r
}

// FailedAssignment wraps a solver error into a not-good result.
func FailedAssignment(kind string, err error) *AssignmentResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &AssignmentResult{Failure: &Failure{Kind: kind, Message: msg}}
}

func (r *AssignmentResult) computeRatios() {
	if len(r.Tours) == 0 {
		return
	}

	minFull, sum := -1, 0
	for _, t := range r.Tours {
		if minFull < 0 || t.FullTime < minFull {
			minFull = t.FullTime
		}
		sum += t.FullTime
	}
	avg := float64(sum) / float64(len(r.Tours))

	for _, t := range r.Tours {
		if minFull > 0 {
			t.RatioToMin = float64(t.FullTime) / float64(minFull)
		}
		if avg > 0 {
			t.RatioToAvg = float64(t.FullTime)/avg - 1
		}
	}
}

// DriverIDs returns the tour owners in ascending order.
func (r *AssignmentResult) DriverIDs() []int64 {
	ids := make([]int64, 0, len(r.Tours))
	for id := range r.Tours {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
