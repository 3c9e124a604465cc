package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gachaupg/shuletrack/core"
)

var (
	fullNameTag  = "fullname"
	fullNameText = "first and last name are required"
)

// InitValidators registers the student struct level rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(studentStructValidation, Student{})
	core.RegisterCustomTranslation(validate, translator, fullNameTag, fullNameText)
}

// studentStructValidation requires both a first and a last name.
func studentStructValidation(sl validator.StructLevel) {
	std, ok := sl.Current().Interface().(Student)
	if !ok {
		return
	}
	if core.CleanString(std.FirstName) == "" {
		sl.ReportError(std.FirstName, "first_name", "FirstName", fullNameTag, "")
	}
	if core.CleanString(std.LastName) == "" {
		sl.ReportError(std.LastName, "last_name", "LastName", fullNameTag, "")
	}
}
