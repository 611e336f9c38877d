package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeBody deserializes and validates a request payload. The returned error
// message is safe to echo back to the client.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return errors.New("invalid request body")
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return fmt.Errorf("invalid field %s", strings.ToLower(fields[0].Field()))
		}
		return errors.New("invalid request body")
	}
	return nil
}
