// Package state holds one resource collection per entity type.
// A State is built once at process start and handed to the presentation layer.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/billing"
	"github.com/gachaupg/shuletrack/core/comms"
	"github.com/gachaupg/shuletrack/core/fleet"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/student"
	"github.com/gachaupg/shuletrack/core/user"
)

type State struct {
	Students      *resource.Collection[student.Student]
	Grades        *resource.Collection[student.Grade]
	Parents       *resource.Collection[student.Parent]
	Staff         *resource.Collection[user.Staff]
	Routes        *resource.Collection[fleet.Route]
	Stops         *resource.Collection[fleet.RouteStop]
	Vehicles      *resource.Collection[fleet.Vehicle]
	Trips         *resource.Collection[fleet.Trip]
	Notifications *resource.Collection[comms.Notification]
	Contacts      *resource.Collection[comms.ContactMessage]
	Invoices      *resource.Collection[billing.Invoice]
	Subscriptions *resource.Collection[billing.Subscription]
	Plans         *resource.Collection[billing.Plan]

	handles map[string]resource.Handle
	names   []string
}

// NewValidator returns a validator with every entity rule registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	fleet.InitValidators(validate, translator)
	billing.InitValidators(validate, translator)
	return validate, translator
}

func New(tr resource.Transport, logger core.Logger) *State {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(tr, "tr"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		panic(err)
	}

	validate, translator := NewValidator()
	opts := resource.Options{Validate: validate, Translator: translator, Logger: logger}

	s := &State{
		Students:      resource.NewCollection[student.Student](student.Descriptor, tr, opts),
		Grades:        resource.NewCollection[student.Grade](student.GradeDescriptor, tr, opts),
		Parents:       resource.NewCollection[student.Parent](student.ParentDescriptor, tr, opts),
		Staff:         resource.NewCollection[user.Staff](user.StaffDescriptor, tr, opts),
		Routes:        resource.NewCollection[fleet.Route](fleet.RouteDescriptor, tr, opts),
		Stops:         resource.NewCollection[fleet.RouteStop](fleet.StopDescriptor, tr, opts),
		Vehicles:      resource.NewCollection[fleet.Vehicle](fleet.VehicleDescriptor, tr, opts),
		Trips:         resource.NewCollection[fleet.Trip](fleet.TripDescriptor, tr, opts),
		Notifications: resource.NewCollection[comms.Notification](comms.NotificationDescriptor, tr, opts),
		Contacts:      resource.NewCollection[comms.ContactMessage](comms.ContactDescriptor, tr, opts),
		Invoices:      resource.NewCollection[billing.Invoice](billing.InvoiceDescriptor, tr, opts),
		Subscriptions: resource.NewCollection[billing.Subscription](billing.SubscriptionDescriptor, tr, opts),
		Plans:         resource.NewCollection[billing.Plan](billing.PlanDescriptor, tr, opts),
	}

	s.handles = make(map[string]resource.Handle)
	for _, h := range []resource.Handle{
		s.Students, s.Grades, s.Parents, s.Staff, s.Routes, s.Stops, s.Vehicles, s.Trips,
		s.Notifications, s.Contacts, s.Invoices, s.Subscriptions, s.Plans,
	} {
		name := h.Descriptor().Name
		s.handles[name] = h
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// Names returns the logical names of every resource, sorted.
func (s *State) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *State) Handle(name string) (resource.Handle, bool) {
	h, ok := s.handles[name]
	return h, ok
}

// LoadAll fetches the named resources (all of them when none is given) concurrently.
// The failures are returned by resource name.
func (s *State) LoadAll(ctx context.Context, scope resource.Scope, names ...string) map[string]error {
	if len(names) == 0 {
		names = s.names
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = make(map[string]error)
	)
	for _, name := range names {
		h, ok := s.handles[name]
		if !ok {
			errs[name] = fmt.Errorf("%q: no such resource", name)
			continue
		}
		wg.Add(1)
		go func(name string, h resource.Handle) {
			defer wg.Done()
			if _, err := h.Load(ctx, scope); err != nil {
				mu.Lock()
				errs[name] = err
				mu.Unlock()
			}
		}(name, h)
	}
	wg.Wait()
	return errs
}

// Summary returns the number of cached entities per resource.
func (s *State) Summary() map[string]int {
	counts := make(map[string]int, len(s.handles))
	for name, h := range s.handles {
		counts[name] = h.Len()
	}
	return counts
}
