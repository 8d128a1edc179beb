package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the required fields of a platform transaction before it
// enters a run.
func (t *PlatformTransaction) Validate() error {
	if err := validate.Struct(t); err != nil {
		return asValidationError("platform transaction "+t.ID, err)
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("platform transaction %s has negative amount %s", t.ID, t.Amount)}
	}
	if t.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: fmt.Sprintf("platform transaction %s has no timestamp", t.ID)}
	}
	return nil
}

// Validate checks the required fields of a gateway transaction before it
// enters a run.
func (t *GatewayTransaction) Validate() error {
	if err := validate.Struct(t); err != nil {
		return asValidationError("gateway transaction "+t.ID, err)
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("gateway transaction %s has negative amount %s", t.ID, t.Amount)}
	}
	if t.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: fmt.Sprintf("gateway transaction %s has no timestamp", t.ID)}
	}
	return nil
}

func asValidationError(subject string, err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return &ValidationError{Field: "unknown", Reason: err.Error()}
	}
	first := errs[0]
	return &ValidationError{
		Field:  first.Field(),
		Reason: fmt.Sprintf("%s failed %q check", subject, first.Tag()),
	}
}
