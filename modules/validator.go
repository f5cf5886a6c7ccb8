package modules

import "github.com/go-playground/validator/v10"

// Validator is the single validator instance shared across rayfleet
var Validator *validator.Validate

func init() {
	Validator = validator.New()
}
