package services

import "route-results-service/internal/domain"

// renumber assigns 1..n in slice order.
func renumber(points []*domain.Point) []*domain.Point {
	for i, p := range points {
		p.Number = i + 1
	}
	return points
}

// LinkChain links every location-bearing point to the next one in slice
// order and terminates the chain at the last. Points must be persisted and
// sorted by number. Breaks and other location-less points get no link.
func LinkChain(points []*domain.Point) []*domain.Point {
	var prev *domain.Point
	for _, p := range points {
		p.NextPointID = 0
		if !p.HasLocation() {
			continue
		}
		if prev != nil {
			prev.NextPointID = p.ID
		}
		prev = p
	}
	return points
}
