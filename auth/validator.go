package auth

import (
	"github.com/go-playground/validator/v10"

	"roomcore/roomerr"
)

var validate = validator.New()

// ValidateStruct checks the request DTO's validate tags, mapping violations
// into the shared validation error kind.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return roomerr.E(roomerr.KindValidation, "%s", err.Error())
	}
	return nil
}
