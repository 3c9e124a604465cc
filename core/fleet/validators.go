package fleet

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gachaupg/shuletrack/core"
)

var (
	clockTag   = "clock"
	clockText  = "enter a time as HH:MM"
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

	stopKindTag  = "stopkind"
	stopKindText = "a stop must be a pickup or a dropoff point"

	endAfterStartTag  = "endafterstart"
	endAfterStartText = "must be after the start"
)

// InitValidators registers the fleet validation tags and struct level rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(clockTag, clockValidation)
	core.RegisterCustomTranslation(validate, translator, clockTag, clockText)

	validate.RegisterStructValidation(fleetStructValidation, RouteStop{}, Trip{})
	core.RegisterCustomTranslation(validate, translator, stopKindTag, stopKindText)
	core.RegisterCustomTranslation(validate, translator, endAfterStartTag, endAfterStartText)
}

func clockValidation(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func fleetStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case RouteStop:
		if !v.IsPickup && !v.IsDropoff {
			sl.ReportError(v.IsPickup, "is_pickup", "IsPickup", stopKindTag, "")
		}
	case Trip:
		if v.ScheduledStart.Valid && v.ScheduledEnd.Valid && !v.ScheduledEnd.Time.After(v.ScheduledStart.Time) {
			sl.ReportError(v.ScheduledEnd, "scheduled_end", "ScheduledEnd", endAfterStartTag, "")
		}
		if v.ActualStart.Valid && v.ActualEnd.Valid && v.ActualEnd.Time.Before(v.ActualStart.Time) {
			sl.ReportError(v.ActualEnd, "actual_end", "ActualEnd", endAfterStartTag, "")
		}
	}
}
