package cmdmox

import "fmt"

// LifecycleError reports an invalid Controller phase transition, e.g.
// calling Verify before Replay.
type LifecycleError struct {
	Operation string
	Phase     string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cmdmox: %s: invalid in phase %s", e.Operation, e.Phase)
}

// MissingEnvironmentError reports that Replay was attempted but the
// environment resource (temp dir / PATH mutation) could not be
// acquired. Verify also returns it, wrapping a transport or environment
// teardown failure, when verification itself found nothing.
type MissingEnvironmentError struct {
	Err error
}

func (e *MissingEnvironmentError) Error() string {
	return fmt.Sprintf("cmdmox: environment not ready: %v", e.Err)
}

func (e *MissingEnvironmentError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid controller or expectation
// configuration: an empty command name, conflicting case-only shim
// names, a non-positive journal bound, Record on a double that is not a
// passthrough spy, an unresolvable launcher binary, or a failure to
// generate launcher entries during Replay.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "cmdmox: configuration: " + e.Message
}

// TransportError wraps a failure from the IPC layer, returned by Replay
// when the controller's endpoint cannot be started or does not become
// ready to accept connections.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cmdmox: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps malformed JSON, an unknown message kind, or a
// missing required field observed on the wire.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cmdmox: protocol: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// VerificationError is the umbrella error Verify returns when the
// verifier found any unexpected invocation, order violation, or count
// violation. Its message is the same multi-section diagnostic rendered
// by internal/verify.Diagnostic.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string {
	return "cmdmox: verification failed:\n" + e.Message
}

// UnexpectedCommandError reports a single invocation that matched no
// declared expectation. The replay handler renders one into the
// launcher's stderr immediately so the failing test command's own
// output names the cause; Verify separately aggregates every such
// invocation recorded in the journal into a VerificationError.
type UnexpectedCommandError struct {
	Command string
	Args    []string
}

func (e *UnexpectedCommandError) Error() string {
	return fmt.Sprintf("cmdmox: unexpected command: %s %v", e.Command, e.Args)
}

// UnfulfilledExpectationError reports that a single expectation's call
// count requirement was not met. Verify aggregates every such shortfall
// into a single VerificationError rather than returning this type
// directly; it remains part of the public taxonomy for callers that
// want to errors.As against a specific expectation's diagnostic text.
type UnfulfilledExpectationError struct {
	Command string
	Want    int
	Got     int
}

func (e *UnfulfilledExpectationError) Error() string {
	return fmt.Sprintf("cmdmox: %s: expected %d call(s), got %d", e.Command, e.Want, e.Got)
}
