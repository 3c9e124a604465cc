package fleet

import (
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/resource"
)

// Vehicle statuses
const (
	VehicleActive      = "active"
	VehicleMaintenance = "maintenance"
	VehicleInactive    = "inactive"
)

// Trip types
const (
	TripPickup  = "pickup"
	TripDropoff = "dropoff"
)

// Trip statuses
const (
	TripScheduled = "scheduled"
	TripPreparing = "preparing"
	TripOngoing   = "ongoing"
	TripCompleted = "completed"
	TripCancelled = "cancelled"
	TripDelayed   = "delayed"
)

var (
	VehicleStatuses = []string{VehicleActive, VehicleMaintenance, VehicleInactive}
	TripTypes       = []string{TripPickup, TripDropoff}
	TripStatuses    = []string{TripScheduled, TripPreparing, TripOngoing, TripCompleted, TripCancelled, TripDelayed}

	RouteDescriptor = resource.Descriptor{
		Name:     "routes",
		Label:    "route",
		Endpoint: "routes",
		Scoped:   true,
		Columns:  []string{"ID", "Name", "Start Location", "End Location", "Distance Km", "Is Active"},
	}
	StopDescriptor = resource.Descriptor{
		Name:     "route-stops",
		Label:    "route stop",
		Endpoint: "route-stops",
		Scoped:   true,
		Columns:  []string{"ID", "Route", "Sequence", "Name", "Latitude", "Longitude", "Is Pickup", "Is Dropoff", "Scheduled Time"},
	}
	VehicleDescriptor = resource.Descriptor{
		Name:     "vehicles",
		Label:    "vehicle",
		Endpoint: "vehicles",
		Scoped:   true,
		Columns:  []string{"ID", "Registration Number", "Make", "Model", "Year", "Capacity", "Status"},
	}
	TripDescriptor = resource.Descriptor{
		Name:     "trips",
		Label:    "trip",
		Endpoint: "trips",
		Scoped:   true,
		Columns:  []string{"ID", "Route", "Vehicle", "Driver", "Type", "Status", "Scheduled Start", "Scheduled End"},
	}
)

type Route struct {
	resource.Base
	School        int     `json:"school,omitempty"`
	Name          string  `json:"name" validate:"required,notblank,max=100"`
	Description   string  `json:"description,omitempty"`
	StartLocation string  `json:"start_location" validate:"required"`
	EndLocation   string  `json:"end_location" validate:"required"`
	DistanceKm    float64 `json:"distance_km" validate:"gte=0"`
	IsActive      bool    `json:"is_active"`
}

// RouteStop is a pickup and/or dropoff point along a route, drawn by the map widget.
type RouteStop struct {
	resource.Base
	School        int      `json:"school,omitempty"`
	Route         null.Int `json:"route" validate:"required"`
	Name          string   `json:"name" validate:"required,notblank"`
	Address       string   `json:"address,omitempty"`
	Latitude      float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Sequence      int      `json:"sequence" validate:"gte=0"`
	IsPickup      bool     `json:"is_pickup"`
	IsDropoff     bool     `json:"is_dropoff"`
	ScheduledTime string   `json:"scheduled_time,omitempty" validate:"omitempty,clock"`
}

type Vehicle struct {
	resource.Base
	School             int    `json:"school,omitempty"`
	RegistrationNumber string `json:"registration_number" validate:"required,notblank,alphanum_"`
	Make               string `json:"make,omitempty"`
	Model              string `json:"model,omitempty"`
	Year               int    `json:"year,omitempty" validate:"omitempty,gte=1950,lte=2100"`
	Capacity           int    `json:"capacity" validate:"required,gt=0,lte=120"`
	Status             string `json:"status" validate:"required,oneof=active maintenance inactive"`
}

func (v *Vehicle) Clean() {
	v.RegistrationNumber = strings.ToUpper(core.CleanString(v.RegistrationNumber))
	v.Make = core.CleanString(v.Make)
	v.Model = core.CleanString(v.Model)
	v.Status = core.CleanString(v.Status, true /* lower */)
}

type Trip struct {
	resource.Base
	School         int       `json:"school,omitempty"`
	Route          null.Int  `json:"route" validate:"required"`
	Driver         null.Int  `json:"driver"`
	Vehicle        null.Int  `json:"vehicle"`
	Type           string    `json:"type" validate:"required,oneof=pickup dropoff"`
	Status         string    `json:"status" validate:"required,oneof=scheduled preparing ongoing completed cancelled delayed"`
	ScheduledStart null.Time `json:"scheduled_start"`
	ScheduledEnd   null.Time `json:"scheduled_end"`
	ActualStart    null.Time `json:"actual_start"`
	ActualEnd      null.Time `json:"actual_end"`
}

// IsOpen reports whether the trip can still change status.
func (t Trip) IsOpen() bool {
	return t.Status != TripCompleted && t.Status != TripCancelled
}

// OrderStops returns the stops of route ordered by sequence, ties broken by id.
// A zero route keeps every stop.
func OrderStops(stops []RouteStop, route resource.ID) []RouteStop {
	out := make([]RouteStop, 0, len(stops))
	for _, stop := range stops {
		if route.IsZero() || resource.RefID(stop.Route).Equal(route) {
			out = append(out, stop)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		a, aOK := out[i].ID.Int()
		b, bOK := out[j].ID.Int()
		if aOK && bOK {
			return a < b
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
