package validation

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterBindingRules installs the custom tags used by request structs on
// gin's validator engine: phone and course. Field errors are reported under
// their json names.
func RegisterBindingRules() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		Register(v)
	})
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return models.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return models.Course(fl.Field().String()).Valid()
	})
}

// FieldErrors turns a bind/validate error into field-level errors.
func FieldErrors(err error) []apperrors.FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]apperrors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, apperrors.FieldError{
				Field:   fe.Field(),
				Message: messageFor(fe),
				Code:    fe.Tag(),
			})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []apperrors.FieldError{{Field: typeErr.Field, Message: "has the wrong type", Code: "type"}}
	}
	if errors.Is(err, io.EOF) {
		return []apperrors.FieldError{{Field: "body", Message: "is required", Code: "required"}}
	}
	return []apperrors.FieldError{{Field: "body", Message: "must be a JSON object", Code: "invalid_json"}}
}

// BindError wraps FieldErrors into a ValidationError.
func BindError(err error) error {
	return apperrors.NewValidationError(err.Error(), FieldErrors(err)...)
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "phone":
		return "must be a valid phone number"
	case "course":
		return "must be one of learners, provisional, full"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "min", "max":
		if fe.Kind() == reflect.String {
			return "must be between 2 and 50 characters"
		}
		return "is out of range"
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}
