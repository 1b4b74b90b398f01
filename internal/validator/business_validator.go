package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single failed rule on a form field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Responses converts the errors into the API error payload shape.
func (ve ValidationErrors) Responses() []models.ValidationErrorResponse {
	out := make([]models.ValidationErrorResponse, 0, len(ve))
	for _, e := range ve {
		value := ""
		if e.Value != nil {
			value = fmt.Sprint(e.Value)
		}
		out = append(out, models.ValidationErrorResponse{
			Field:   e.Field,
			Message: e.Message,
			Value:   value,
			Code:    e.Rule,
		})
	}
	return out
}

// ByField returns the first message per field, for re-rendering forms.
func (ve ValidationErrors) ByField() map[string]string {
	out := make(map[string]string, len(ve))
	for _, e := range ve {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

// BusinessValidator handles form and business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				continue
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates any struct against its tags
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return bv.toValidationErrors(err)
	}
	return nil
}

// ValidateCourseDraft validates course creation
func (bv *BusinessValidator) ValidateCourseDraft(req *models.CourseDraft) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	if strings.TrimSpace(req.Title) == "" && len(req.Title) > 0 {
		errs = append(errs, ValidationError{
			Field:   "title",
			Message: "cannot be blank",
			Value:   req.Title,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateCourseUpdate validates a partial course update
func (bv *BusinessValidator) ValidateCourseUpdate(req *models.CourseUpdate) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	if req.Empty() {
		errs = append(errs, ValidationError{
			Field:   "course",
			Message: "at least one field must be changed",
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateContentDraft validates a content upload. hasFile reports whether the
// multipart request carried a file part.
func (bv *BusinessValidator) ValidateContentDraft(req *models.ContentDraft, hasFile bool) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	switch {
	case req.Type == models.ContentLink && req.URL == "":
		errs = append(errs, ValidationError{
			Field:   "url",
			Message: "is required for link content",
			Rule:    "business_logic",
		})
	case req.Type != models.ContentLink && req.Type != "" && !hasFile && req.URL == "":
		errs = append(errs, ValidationError{
			Field:   "file",
			Message: "a file or url is required",
			Rule:    "business_logic",
		})
	}

	return errs
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Price must convert exactly to minor units
	bv.validate.RegisterValidation("price_amount", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" {
			return false
		}
		_, err := models.ToMinorUnits(json.Number(raw))
		return err == nil
	})

	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
}

func (bv *BusinessValidator) toValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: bv.getErrorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// getErrorMessage returns user-friendly error messages
func (bv *BusinessValidator) getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "price_amount":
		return "must be a non-negative amount with at most two decimals"
	case "user_role":
		return "must be a valid user role"
	case "e164|numeric":
		return "must be a valid phone number"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
