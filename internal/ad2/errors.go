package ad2

import "fmt"

// InvalidMessageError reports a line that could not be classified or
// whose fields failed to parse. It is non-fatal: the pipeline logs it
// and skips the line.
type InvalidMessageError struct {
	Raw    string
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message (%s): %s", e.Reason, e.Raw)
}

func invalidMessage(reason, raw string) error {
	return &InvalidMessageError{Raw: raw, Reason: reason}
}
