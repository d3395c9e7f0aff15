// Package lower turns validated IR functions into native register-machine
// code: a fixed registry maps each library function to a code-generation
// handler, and a block builder walks the statement graph enforcing the
// linear-use discipline.
package lower

import (
	"fmt"

	"tern/internal/diag"
	"tern/internal/sir"
)

// Handler generates native code for one statement. Handlers are pure with
// respect to the registry: all mutable state lives in the per-function
// context, so any number of functions may lower concurrently.
type Handler func(fc *funcLowerer, inv *invocation) error

// Registry is the closed-but-extensible dispatch table from an operation
// name plus generic-argument combination to its handler. It is built once
// and read-only afterwards.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns the registry of builtin operations.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler, 64)}
	r.registerFelt()
	r.registerUint()
	r.registerData()
	r.registerHeap()
	r.registerFlow()
	return r
}

// Register installs a handler for an operation name. Installing over an
// existing name panics; the builtin set is fixed.
func (r *Registry) Register(name string, h Handler) {
	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("lower: duplicate handler for %q", name))
	}
	r.handlers[name] = h
}

// Lookup resolves the handler for a libfunc instance. The generic-argument
// combination is validated by the handler itself against the instance
// signature; an unknown name is a fatal lowering error.
func (r *Registry) Lookup(sig *sir.Signature, loc diag.Loc, bag *diag.Bag) (Handler, bool) {
	h, ok := r.handlers[sig.Name]
	if !ok {
		bag.Add(diag.NewError(diag.LowerUnknownLibfunc, loc,
			fmt.Sprintf("unknown library function %q", sig.Key)))
		return nil, false
	}
	return h, true
}
