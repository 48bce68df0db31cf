package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/library-lending/internal/core/domain"
)

var fieldNames = map[string]string{
	"UserID":       "user_id",
	"BookID":       "book_id",
	"DueDate":      "due_date",
	"RequestID":    "request_id",
	"LendingID":    "lending_id",
	"Status":       "status",
	"ReturnedDate": "returned_date",
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.InvalidInput("%v", err)
	}

	fe := verrs[0]
	field, ok := fieldNames[fe.Field()]
	if !ok {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "gt":
		return domain.InvalidInput("%s must be a number greater than %s", field, fe.Param())
	case "oneof":
		return domain.InvalidInput("%s must be one of: %s", field, fe.Param())
	case "max":
		return domain.InvalidInput("%s must be at most %s characters", field, fe.Param())
	default:
		return domain.InvalidInput("%s is invalid", field)
	}
}
