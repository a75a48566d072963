package handler

import (
	"github.com/go-playground/validator/v10"
)

// Validator adapts go-playground/validator to echo's Validator
// interface.  Handlers call c.Validate after binding; struct tags on
// the request DTOs carry the rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator ready to be set on the echo
// instance.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate runs the struct-tag rules against i.
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
