package titleclient

import (
	"errors"
	"fmt"
)

// ErrMissingTitle means the server answered with a success status but no title.
var ErrMissingTitle = errors.New("successful response without title")

// StatusError is a non-2xx answer from the title server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("title server returned %d: %s", e.StatusCode, e.Body)
}
