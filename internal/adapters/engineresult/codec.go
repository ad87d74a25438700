package engineresult

import (
	"errors"
	"fmt"
	"route-results-service/internal/domain"
	"time"

	"github.com/goccy/go-json"
)

// Wire shape of a solver result as stored on an engine run.
type resultDTO struct {
	Good            bool              `json:"good"`
	DriversTours    map[int64]tourDTO `json:"drivers_tours,omitempty"`
	SkippedOrders   []int64           `json:"skipped_orders,omitempty"`
	SkippedDrivers  []int64           `json:"skipped_drivers,omitempty"`
	DrivingTime     int               `json:"driving_time"`
	DrivingDistance int               `json:"driving_distance"`
	Exception       *exceptionDTO     `json:"exception,omitempty"`
}

type tourDTO struct {
	Points          []pointDTO `json:"points"`
	DrivingTime     int        `json:"driving_time"`
	FullTime        int        `json:"full_time"`
	DrivingDistance int        `json:"driving_distance"`
}

type pointDTO struct {
	PointKind        string        `json:"point_kind"`
	PointContentType string        `json:"point_content_type,omitempty"`
	PointPrototype   *prototypeDTO `json:"point_prototype,omitempty"`
	Location         []float64     `json:"location,omitempty"`
	ServiceTime      int           `json:"service_time"`
	DrivingTime      int           `json:"driving_time"`
	Distance         int           `json:"distance"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	UtilizedCapacity float64       `json:"utilized_capacity,omitempty"`
	Polyline         string        `json:"path_polyline,omitempty"`
}

type prototypeDTO struct {
	ID       int64     `json:"id,omitempty"`
	Address  string    `json:"address,omitempty"`
	Location []float64 `json:"location,omitempty"`
}

type exceptionDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Decode parses a stored solver result. Tour ratios are recomputed.
func Decode(data []byte) (*domain.AssignmentResult, error) {
	if len(data) == 0 {
		return nil, errors.New("decode result: empty payload")
	}

	var dto resultDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	if !dto.Good {
		r := &domain.AssignmentResult{
			SkippedOrders:  dto.SkippedOrders,
			SkippedDrivers: dto.SkippedDrivers,
		}
		if dto.Exception != nil {
			r.Failure = &domain.Failure{Kind: dto.Exception.Kind, Message: dto.Exception.Message}
		}
		return r, nil
	}

	tours := make(map[int64]*domain.DriverTour, len(dto.DriversTours))
	for driverID, t := range dto.DriversTours {
		tour := &domain.DriverTour{
			Stops:           make([]domain.StopPlan, 0, len(t.Points)),
			DrivingTime:     t.DrivingTime,
			FullTime:        t.FullTime,
			DrivingDistance: t.DrivingDistance,
		}
		for i, p := range t.Points {
			stop, err := p.toStop()
			if err != nil {
				return nil, fmt.Errorf("decode result: driver %d point #%d: %w", driverID, i+1, err)
			}
			tour.Stops = append(tour.Stops, stop)
		}
		tours[driverID] = tour
	}

	return domain.NewAssignmentResult(tours, dto.SkippedOrders, dto.SkippedDrivers, dto.DrivingTime, dto.DrivingDistance), nil
}

// Encode serialises a solver result into its stored form.
func Encode(r *domain.AssignmentResult) ([]byte, error) {
	if r == nil {
		return nil, errors.New("encode result: result must be non-nil")
	}

	dto := resultDTO{
		Good:            r.Good,
		SkippedOrders:   r.SkippedOrders,
		SkippedDrivers:  r.SkippedDrivers,
		DrivingTime:     r.DrivingTime,
		DrivingDistance: r.DrivingDistance,
	}
	if r.Failure != nil {
		dto.Exception = &exceptionDTO{Kind: r.Failure.Kind, Message: r.Failure.Message}
	}
	if len(r.Tours) > 0 {
		dto.DriversTours = make(map[int64]tourDTO, len(r.Tours))
	}
	for driverID, tour := range r.Tours {
		t := tourDTO{
			Points:          make([]pointDTO, 0, len(tour.Stops)),
			DrivingTime:     tour.DrivingTime,
			FullTime:        tour.FullTime,
			DrivingDistance: tour.DrivingDistance,
		}
		for _, s := range tour.Stops {
			t.Points = append(t.Points, fromStop(s))
		}
		dto.DriversTours[driverID] = t
	}

	data, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

func (p pointDTO) toStop() (domain.StopPlan, error) {
	kind := domain.PointKind(p.PointKind)
	if !kind.Valid() {
		return domain.StopPlan{}, fmt.Errorf("unknown point kind %q", p.PointKind)
	}

	stop := domain.StopPlan{
		Kind:             kind,
		Entity:           domain.EntityType(p.PointContentType),
		ServiceTime:      p.ServiceTime,
		DrivingTime:      p.DrivingTime,
		Distance:         p.Distance,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		UtilizedCapacity: p.UtilizedCapacity,
		Polyline:         p.Polyline,
	}

	if p.Location != nil {
		c, err := coords(p.Location)
		if err != nil {
			return domain.StopPlan{}, fmt.Errorf("location: %w", err)
		}
		stop.Location = &c
	}

	if p.PointPrototype != nil {
		proto := &domain.Prototype{ID: p.PointPrototype.ID, Address: p.PointPrototype.Address}
		if p.PointPrototype.Location != nil {
			c, err := coords(p.PointPrototype.Location)
			if err != nil {
				return domain.StopPlan{}, fmt.Errorf("prototype location: %w", err)
			}
			proto.Coordinates = c
		}
		stop.Prototype = proto
	}

	return stop, nil
}

func fromStop(s domain.StopPlan) pointDTO {
	p := pointDTO{
		PointKind:        string(s.Kind),
		PointContentType: string(s.Entity),
		ServiceTime:      s.ServiceTime,
		DrivingTime:      s.DrivingTime,
		Distance:         s.Distance,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		UtilizedCapacity: s.UtilizedCapacity,
		Polyline:         s.Polyline,
	}
	if s.Location != nil {
		p.Location = s.Location.CoordsToList()
	}
	if s.Prototype != nil {
		p.PointPrototype = &prototypeDTO{
			ID:       s.Prototype.ID,
			Address:  s.Prototype.Address,
			Location: s.Prototype.Coordinates.CoordsToList(),
		}
	}
	return p
}

// coords reads a [lon, lat] pair.
func coords(v []float64) (domain.Coordinates, error) {
	if len(v) != 2 {
		return domain.Coordinates{}, fmt.Errorf("want [lon, lat], got %d values", len(v))
	}
	return domain.Coordinates{Lon: v[0], Lat: v[1]}, nil
}
