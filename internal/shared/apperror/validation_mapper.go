package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fieldCaser = cases.Title(language.English)

// start_date -> Start Date
func formatFieldName(s string) string {
	return fieldCaser.String(strings.ReplaceAll(s, "_", " "))
}

// MapValidationError turns the first binding failure into an INVALID_INPUT error.
func MapValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return New(CodeInvalidInput, "Invalid input", http.StatusBadRequest)
	}

	e := errs[0]
	field := formatFieldName(e.Field())

	switch e.Tag() {
	case "required":
		return RequiredField(field)
	case "oneof":
		return invalidf("%s must be one of %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	case "max":
		return invalidf("%s must be at most %s characters", field, e.Param())
	case isoDateTag:
		return invalidf("%s must be a date in YYYY-MM-DD form", field)
	default:
		return InvalidField(field)
	}
}

func invalidf(format string, args ...any) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf(format, args...), http.StatusBadRequest)
}
