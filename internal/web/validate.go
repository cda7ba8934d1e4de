package web

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

// importRequest is the multipart form posted to start an import.
type importRequest struct {
	FileName string `form:"file" validate:"required"`
	SurveyID string `form:"survey_id" validate:"required"`
}

// formErrors maps the first failing form field to its service error, so the
// form reports the same messages as the service.
var formErrors = map[string]error{
	"file":      core.ErrMissingFile,
	"survey_id": core.ErrMissingSurveyID,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateImport checks the form and returns the error for the first
// failing field.
func (s *Server) validateImport(req importRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if mapped, ok := formErrors[verrs[0].Field()]; ok {
			return mapped
		}
	}
	return err
}
