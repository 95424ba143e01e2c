package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"trimly/pkg/logger"
	"trimly/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SalonValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSalonValidator(log *logger.Logger) *SalonValidator {
	return &SalonValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *SalonValidator) Validate(salon *model.Salon) error {
	if err := v.validate.Struct(salon); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	if err := v.uniqueBarberIDs(salon.Barbers); err != nil {
		return err
	}

	return nil
}

func (v *SalonValidator) ValidateUpdate(update *model.SalonUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	if update.Barbers != nil {
		if err := v.uniqueBarberIDs(*update.Barbers); err != nil {
			return err
		}
	}

	return nil
}

func (v *SalonValidator) ValidateReview(review *model.Review) error {
	if err := v.validate.Struct(review); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

// Barber ids double as reservation resource ids, so duplicates inside one
// salon would merge two calendars.
func (v *SalonValidator) uniqueBarberIDs(barbers []model.Barber) error {
	seen := make(map[string]struct{}, len(barbers))
	for _, b := range barbers {
		if _, dup := seen[b.ID]; dup {
			return ValidationErrors{
				ValidationError{
					Field:   "Barbers",
					Message: fmt.Sprintf("duplicate barber id: %s", b.ID),
				},
			}
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

func (v *SalonValidator) translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +972501234567)", err.Field())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
