package billing

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gachaupg/shuletrack/core"
)

const dateLayout = "2006-01-02"

var (
	dueAfterIssueTag  = "dueafterissue"
	dueAfterIssueText = "due date cannot be before the issue date"

	endAfterStartTag  = "endafterstart"
	endAfterStartText = "end date must be after the start date"
)

// InitValidators registers the billing struct level rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(billingStructValidation, Invoice{}, Subscription{})
	core.RegisterCustomTranslation(validate, translator, dueAfterIssueTag, dueAfterIssueText)
	core.RegisterCustomTranslation(validate, translator, endAfterStartTag, endAfterStartText)
}

func billingStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case Invoice:
		if before(v.DueDate, v.IssueDate, false) {
			sl.ReportError(v.DueDate, "due_date", "DueDate", dueAfterIssueTag, "")
		}
	case Subscription:
		if before(v.EndDate, v.StartDate, true) {
			sl.ReportError(v.EndDate, "end_date", "EndDate", endAfterStartTag, "")
		}
	}
}

// before reports whether date a is before b (or equal to it when strict).
// Unparsable dates are left to the field validators.
func before(a, b string, strict bool) bool {
	ta, errA := time.Parse(dateLayout, a)
	tb, errB := time.Parse(dateLayout, b)
	if errA != nil || errB != nil {
		return false
	}
	if strict {
		return !ta.After(tb)
	}
	return ta.Before(tb)
}
