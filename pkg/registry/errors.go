package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownShape is returned by ShapeByName for an unsupported shape name.
var ErrUnknownShape = errors.New("unknown gateway shape")

// ValidationError reports a service definition that breaks an invariant.
// It is always raised before any request reaches the gateway.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid service definition: " + e.Message
	}
	return fmt.Sprintf("invalid service definition: %s: %s", e.Field, e.Message)
}

// GatewayError reports an unexpected answer from the gateway, or a request
// that produced no answer at all.
type GatewayError struct {
	// Op names the reconciliation step, e.g. "create service".
	Op     string
	Method string
	Path   string

	// StatusCode and Body describe an unexpected response. StatusCode is 0
	// when Err is set.
	StatusCode int
	Body       string

	// Err is the transport or decoding failure, if any.
	Err error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: %s %s: unexpected status %d", e.Op, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s %s: unexpected status %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// RegistrationError is the only error type returned by Registrar.Register.
// The cause is either a *ValidationError or a *GatewayError.
type RegistrationError struct {
	Service string
	Shape   string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register service %q on %s: %v", e.Service, e.Shape, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsGateway reports whether err carries a *GatewayError.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
