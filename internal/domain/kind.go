package domain

import "fmt"

// Kind of a planned or persisted stop.
type PointKind string

const (
	KindHub      PointKind = "hub"
	KindLocation PointKind = "location"
	KindPickup   PointKind = "pickup"
	KindDelivery PointKind = "delivery"
	KindBreak    PointKind = "break"
)

func (k PointKind) Valid() bool {
	switch k {
	case KindHub, KindLocation, KindPickup, KindDelivery, KindBreak:
		return true
	}
	return false
}

// Type of the entity a point refers to.
type EntityType string

const (
	EntityOrder    EntityType = "order"
	EntityHub      EntityType = "hub"
	EntityLocation EntityType = "location"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityOrder, EntityHub, EntityLocation:
		return true
	}
	return false
}

// EntityRef is a typed reference from a point to the order, hub or
// location it visits. The zero value refers to nothing (breaks).
type EntityRef struct {
	Type EntityType
	ID   int64
}

func (r EntityRef) IsZero() bool { return r.Type == "" && r.ID == 0 }

func (r EntityRef) String() string {
	if r.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// EntityTypeFor returns the entity type stops of the given kind refer to.
func EntityTypeFor(k PointKind) (EntityType, bool) {
	switch k {
	case KindPickup, KindDelivery:
		return EntityOrder, true
	case KindHub:
		return EntityHub, true
	case KindLocation:
		return EntityLocation, true
	}
	return "", false
}
