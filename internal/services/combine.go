package services

import (
	"route-results-service/internal/domain"
	"slices"
	"strings"
)

// CombineResults merges the results of clustered solver runs for one
// optimisation. The combination is good when at least one run is good;
// failed runs then contribute their orders and drivers as skipped. When
// every run failed, the failures are merged into one.
func CombineResults(results []*domain.AssignmentResult) *domain.AssignmentResult {
	tours := make(map[int64]*domain.DriverTour)
	var skippedOrders, skippedDrivers []int64
	var failures []*domain.Failure
	drivingTime, drivingDistance := 0, 0
	good := false

	for _, r := range results {
		if r == nil {
			continue
		}
		skippedOrders = append(skippedOrders, r.SkippedOrders...)
		skippedDrivers = append(skippedDrivers, r.SkippedDrivers...)
		if !r.Good {
			if r.Failure != nil {
				failures = append(failures, r.Failure)
			}
			continue
		}
		good = true
		for driverID, tour := range r.Tours {
			tours[driverID] = tour
		}
		drivingTime += r.DrivingTime
		drivingDistance += r.DrivingDistance
	}

	if !good {
		return &domain.AssignmentResult{Failure: combineFailures(failures)}
	}

	slices.Sort(skippedDrivers)
	return domain.NewAssignmentResult(tours, skippedOrders, slices.Compact(skippedDrivers), drivingTime, drivingDistance)
}

func combineFailures(failures []*domain.Failure) *domain.Failure {
	if len(failures) == 0 {
		return &domain.Failure{Kind: "no_results", Message: "no solver run produced a result"}
	}
	if len(failures) == 1 {
		return failures[0]
	}

	kind := failures[0].Kind
	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		if f.Kind != kind {
			kind = "combined"
		}
		msgs = append(msgs, f.Message)
	}
	return &domain.Failure{Kind: kind, Message: strings.Join(msgs, "; ")}
}
