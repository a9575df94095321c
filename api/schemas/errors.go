package schemas

// InvalidInputError reports missing or malformed caller-supplied input.
// It maps to a 400-equivalent response at the ingress boundary and is
// never retried.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// NewInvalidInput builds an InvalidInputError with the given reason.
func NewInvalidInput(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}
