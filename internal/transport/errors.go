package transport

import (
	"errors"
	"fmt"
)

// ErrAuthExpired means a 401 was received and the token refresh did not
// produce a usable new token. The caller must re-authenticate.
var ErrAuthExpired = errors.New("authentication expired")

// APIError is a non-2xx, non-401 backend response.
type APIError struct {
	Status     int
	StatusText string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.StatusText)
}
