package services

import "route-results-service/internal/domain"

// IsSameStop reports whether two points stand for the same real-world stop.
// Breaks carry no entity and are identified by their exact time window;
// every other kind is identified by its entity reference.
func IsSameStop(a, b *domain.Point) bool {
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	if a.Kind == domain.KindBreak {
		return a.StartTime.Equal(b.StartTime) && a.EndTime.Equal(b.EndTime)
	}
	return a.Ref == b.Ref
}

// IsSameWaypoint reports whether two location points sit on the same
// coordinates, even when they reference different location rows.
func IsSameWaypoint(a, b *domain.Point) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind != domain.KindLocation || b.Kind != domain.KindLocation {
		return false
	}
	if a.Ref.Type != b.Ref.Type || a.Waypoint == nil || b.Waypoint == nil {
		return false
	}
	return a.Waypoint.Equal(*b.Waypoint)
}

type stopKey struct {
	kind domain.PointKind
	ref  domain.EntityRef
}

func uniqueKey(p *domain.Point) stopKey {
	return stopKey{kind: p.Kind, ref: p.Ref}
}
