package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultBrand is attached to every event relayed to the sink unless configured otherwise.
const DefaultBrand = "testBrand"

// Event is a producer-submitted record. All four fields are required; the
// body is opaque and the timestamp is carried through as sent.
type Event struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Body      string `json:"body" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

// EnhancedEvent is an Event with the brand attached just before sink delivery.
type EnhancedEvent struct {
	Event
	Brand string `json:"brand" validate:"required"`
}

// ValidationError lists the JSON names of missing or empty fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid event: missing or empty " + strings.Join(e.Fields, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns a *ValidationError when any required field is empty.
func (e Event) Validate() error {
	return validateStruct(e)
}

// Validate checks the embedded event fields and the brand.
func (e EnhancedEvent) Validate() error {
	return validateStruct(e)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{Fields: make([]string, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, fe.Field())
	}
	return verr
}

// Enhance attaches brand to e.
func Enhance(e Event, brand string) EnhancedEvent {
	return EnhancedEvent{Event: e, Brand: brand}
}

// Enhance overwrites the brand; applying it repeatedly yields the same event.
func (e EnhancedEvent) Enhance(brand string) EnhancedEvent {
	e.Brand = brand
	return e
}
