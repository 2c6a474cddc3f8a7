package server

import "errors"

// ErrInvalidBody is returned when a POST /scan body is not a JSON object
// with a host field.
var ErrInvalidBody = errors.New("request body must be a JSON object with a host field")
