package httpserver

import "fmt"

// BindError reports that the listener could not bind its address. The
// controller stays Stopped; retrying is up to the caller.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
