package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs validator/v10 tags over a request struct at the boundary.
func ValidateStruct(input interface{}) error {
	return validate.Struct(input)
}
