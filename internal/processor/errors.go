package processor

import "fmt"

// TransportError covers every way a processor call can fail: timeouts, connection
// errors, non-2xx statuses and bodies that are not JSON objects.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("processor %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("processor %s: %s", e.Op, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }
