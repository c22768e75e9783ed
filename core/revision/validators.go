package revision

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-curriculum/core"
)

var (
	priorityTag  = "priority"
	priorityText = "priority must be one of High, Medium or Low"
)

func init() {
	_ = core.Validate.RegisterValidation(priorityTag, priorityValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, priorityTag, priorityText)
}

// priorityValidation checks that the field is a known Priority.
func priorityValidation(fl validator.FieldLevel) bool {
	if p, ok := fl.Field().Interface().(Priority); ok {
		return p.IsValid()
	}
	return false
}
