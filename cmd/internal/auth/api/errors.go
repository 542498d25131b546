package authapi

import (
	"errors"
	"net/http"

	"github.com/mladen081/u-m/cmd/identity"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
)

// ErrMalformedResponse is returned when a 2xx auth response lacks the token pair.
var ErrMalformedResponse = errors.New("malformed auth response")

// validationError reshapes a local form check into the same error the server
// would have produced, so callers render one kind of field feedback.
func validationError(err error) error {
	fe, ok := identity.AsFieldErrors(err)
	if !ok {
		return err
	}
	fields := make(map[string][]string, len(fe))
	for k, v := range fe {
		fields[k] = append([]string(nil), v...)
	}
	return &session.APIError{
		Status:  http.StatusBadRequest,
		Code:    session.CodeValidation,
		Message: "Validation failed",
		Fields:  fields,
	}
}
