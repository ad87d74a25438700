package domain

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Equal compares coordinates exactly. Two location rows at the same
// coordinates describe the same place.
func (c Coordinates) Equal(o Coordinates) bool {
	return c.Lon == o.Lon && c.Lat == o.Lat
}

// A waypoint location created on demand for route points that are neither
// orders nor hubs.
type Location struct {
	ID          int64
	Address     string
	Coordinates Coordinates
}
