package cmdmox

import "github.com/cmdmox/cmdmox/internal/types"

// Invocation, Response, and the passthrough message types are aliases
// of the internal/types definitions shared with the journal, verifier,
// and passthrough coordinator, avoiding a copy at the package boundary
// while keeping those packages free of a dependency back on this one.
type (
	Invocation         = types.Invocation
	Response           = types.Response
	PassthroughRequest = types.PassthroughRequest
	PassthroughResult  = types.PassthroughResult
	Handler            = types.Handler
)

// HandlerFunc adapts a plain function to the Handler interface, since
// Go has closures where the spec's source language needed an explicit
// callable object.
type HandlerFunc func(Invocation) Response

// Run implements Handler.
func (f HandlerFunc) Run(inv Invocation) Response { return f(inv) }

// RunFunc wraps fn as a Handler for CommandDouble.Runs.
func RunFunc(fn func(Invocation) Response) Handler {
	return HandlerFunc(fn)
}

// RunTuple wraps fn, which returns the (stdout, stderr, exitCode) tuple
// form the spec also accepts, as a Handler for CommandDouble.Runs.
func RunTuple(fn func(Invocation) (stdout, stderr string, exitCode int)) Handler {
	return HandlerFunc(func(inv Invocation) Response {
		so, se, code := fn(inv)
		return Response{Stdout: so, Stderr: se, ExitCode: code}
	})
}
