package service

import "fmt"

// ErrorKind buckets engine failures by how the caller should react.
type ErrorKind string

const (
	// KindValidation: bad input (missing content, wrong channel). Terminal.
	KindValidation ErrorKind = "validation"
	// KindConfiguration: tenant setup problem (no verified identity).
	// Terminal until an operator fixes it.
	KindConfiguration ErrorKind = "configuration"
	// KindTransport: the provider send failed. Recorded; retry is the
	// caller's decision, never this engine's.
	KindTransport ErrorKind = "transport"
	// KindScheduling: a timeout could not be scheduled. Isolated per
	// timeout type, never unwinds a successful send.
	KindScheduling ErrorKind = "scheduling"
	// KindStateIntegrity: plan/state mismatch (missing plan or node).
	// Indicates corruption or a race with campaign mutation; reported,
	// not retried.
	KindStateIntegrity ErrorKind = "state_integrity"
)

type EngineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func configurationError(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func transportError(err error) *EngineError {
	return &EngineError{Kind: KindTransport, Msg: "send failed", Err: err}
}

func stateIntegrityError(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindStateIntegrity, Msg: fmt.Sprintf(format, args...)}
}

// IsTerminal reports whether err is an engine error whose kind never benefits
// from a redelivery.
func IsTerminal(err error) bool {
	e, ok := err.(*EngineError)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindValidation, KindConfiguration, KindStateIntegrity:
		return true
	}
	return false
}
