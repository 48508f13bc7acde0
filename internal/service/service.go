// Package service contains the business logic for every HRMS module.
// Services take the authenticated actor and the request's resolved
// organization scope explicitly, run the entity access guard, and only
// then touch the database. All errors surface as apperr values so the
// handler layer maps them exactly once.
package service

import (
	"errors"
	"strings"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// validate is shared by all services; inputs carry `validate` tags.
var validate = validator.New()

// checkInput runs struct validation and converts failures into 400s.
func checkInput(input any) error {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return apperr.Validation("field " + f.Field() + " failed on " + f.Tag())
		}
		return apperr.Validation(err.Error())
	}
	return nil
}

// notFoundOr converts gorm's record-not-found into a 404 for the given
// resource and passes other errors through.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

// isUniqueViolation sniffs driver-level unique constraint errors. Both
// sqlite and postgres surface them only as message text through GORM.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
