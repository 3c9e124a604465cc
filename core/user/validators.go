package user

import (
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gachaupg/shuletrack/core"
)

var (
	staffRoleTag  = "staffrole"
	staffRoleText = "invalid role"

	sortedRoles = func() []string {
		roles := append([]string(nil), AllRoles...)
		sort.Strings(roles)
		return roles
	}()
)

// InitValidators registers the user validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(staffRoleTag, staffRoleValidation)
	core.RegisterCustomTranslation(validate, translator, staffRoleTag, staffRoleText)
}

// staffRoleValidation checks that the role is one of AllRoles
func staffRoleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	idx := sort.SearchStrings(sortedRoles, role)
	return idx < len(sortedRoles) && sortedRoles[idx] == role
}
