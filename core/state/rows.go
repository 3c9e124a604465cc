package state

import (
	"fmt"

	"github.com/gachaupg/shuletrack/core/billing"
	"github.com/gachaupg/shuletrack/core/fleet"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/student"
	"github.com/gachaupg/shuletrack/core/user"
)

var (
	gradeName   = func(g student.Grade) string { return g.Name }
	parentName  = func(p student.Parent) string { return p.FullName() }
	routeName   = func(r fleet.Route) string { return r.Name }
	vehicleName = func(v fleet.Vehicle) string { return v.RegistrationNumber }
	staffName   = func(s user.Staff) string { return s.FullName() }
	planName    = func(p billing.Plan) string { return p.Name }
)

// Rows returns the cached entities of a resource as row objects, foreign
// references replaced by the label of the entity they point to.
func (s *State) Rows(name string) ([]map[string]interface{}, error) {
	switch name {
	case student.Descriptor.Name:
		items := s.Students.Store().Items()
		return decorate(items, func(row map[string]interface{}, std student.Student) {
			row["name"] = std.FullName()
			row["grade"] = resource.Label(s.Grades.Store(), std.Grade, gradeName)
			row["parent"] = resource.Label(s.Parents.Store(), std.Parent, parentName)
		})
	case fleet.TripDescriptor.Name:
		items := s.Trips.Store().Items()
		return decorate(items, func(row map[string]interface{}, trip fleet.Trip) {
			row["route"] = resource.Label(s.Routes.Store(), trip.Route, routeName)
			row["vehicle"] = resource.Label(s.Vehicles.Store(), trip.Vehicle, vehicleName)
			row["driver"] = resource.Label(s.Staff.Store(), trip.Driver, staffName)
		})
	case fleet.StopDescriptor.Name:
		items := fleet.OrderStops(s.Stops.Store().Items(), resource.ID{})
		return decorate(items, func(row map[string]interface{}, stop fleet.RouteStop) {
			row["route"] = resource.Label(s.Routes.Store(), stop.Route, routeName)
		})
	case billing.SubscriptionDescriptor.Name:
		items := s.Subscriptions.Store().Items()
		return decorate(items, func(row map[string]interface{}, sub billing.Subscription) {
			row["plan"] = resource.Label(s.Plans.Store(), sub.Plan, planName)
		})
	case user.StaffDescriptor.Name:
		items := s.Staff.Store().Items()
		return decorate(items, func(row map[string]interface{}, st user.Staff) {
			row["role"] = user.RoleName(st.Role)
		})
	}

	h, ok := s.handles[name]
	if !ok {
		return nil, fmt.Errorf("%q: no such resource", name)
	}
	return h.Rows()
}

func decorate[T resource.Entity](items []T, fn func(map[string]interface{}, T)) ([]map[string]interface{}, error) {
	rows, err := resource.Rows(items)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		fn(rows[i], items[i])
	}
	return rows, nil
}
