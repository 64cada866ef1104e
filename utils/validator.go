package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"mailwarm/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// engagement_kind accepts the event kinds the ingest pipeline emits.
	_ = v.RegisterValidation("engagement_kind", func(fl validator.FieldLevel) bool {
		return models.EngagementKind(fl.Field().String()).Valid()
	})

	// counter_date accepts the YYYY-MM-DD form daily counters are keyed by.
	_ = v.RegisterValidation("counter_date", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || validDate(s)
	})

	return v
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var errors []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param+" characters")
		case "max":
			errors = append(errors, field+" must be at most "+param+" characters")
		case "email":
			errors = append(errors, field+" must be a valid email")
		case "engagement_kind":
			errors = append(errors, field+" must be a known engagement kind")
		case "counter_date":
			errors = append(errors, field+" must be a YYYY-MM-DD date")
		default:
			errors = append(errors, field+" is invalid")
		}
	}

	return fmt.Errorf(strings.Join(errors, ", "))
}
