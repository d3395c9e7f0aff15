package exec

import (
	"fmt"

	"tern/internal/native"
	"tern/internal/rt"
	"tern/internal/types"
)

// InvocationError reports an ABI contract violation between the caller and
// the compiled module: wrong argument count or shape, or a result that
// cannot be decoded against its descriptor. It is always fatal and is
// never conflated with a program panic.
type InvocationError struct {
	Symbol string
	Reason string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %q: %s", e.Symbol, e.Reason)
}

func invErr(symbol, format string, args ...any) *InvocationError {
	return &InvocationError{Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// Outcome is the first-class result of one invocation: either the decoded
// return values or a panic payload. Out-of-gas, division by zero and
// explicit panics all surface here as panics, not as errors.
type Outcome struct {
	Result  []Arg
	Panic   *rt.Panic
	GasUsed uint64
	GasLeft uint64
}

// Panicked reports whether the program indicated failure.
func (o *Outcome) Panicked() bool {
	return o.Panic != nil
}

// Engine drives compiled modules. It is safe for concurrent Invoke calls:
// the module and type tables are read-only and the heap uses atomic
// reference counts.
type Engine struct {
	Module *native.Module
	Types  *types.Interner
	Heap   *rt.Heap
}

func NewEngine(mod *native.Module, typesIn *types.Interner) *Engine {
	return &Engine{
		Module: mod,
		Types:  typesIn,
		Heap:   rt.NewHeap(),
	}
}

// Invoke marshals args, runs the entry point synchronously and decodes the
// outcome. Gas accounting is the sole execution bound; there is no
// cancellation.
func (e *Engine) Invoke(symbol string, args []Arg, gasLimit uint64) (*Outcome, error) {
	fn, desc, ok := e.Module.Lookup(symbol)
	if !ok {
		return nil, invErr(symbol, "no such entry point")
	}
	if len(args) != len(desc.ParamTypes) {
		return nil, invErr(symbol, "entry point takes %d arguments, caller supplied %d",
			len(desc.ParamTypes), len(args))
	}

	params := make([]rt.Value, len(args))
	for i := range args {
		v, err := e.marshal(&args[i], desc.ParamTypes[i])
		if err != nil {
			return nil, invErr(symbol, "argument %d: %v", i, err)
		}
		params[i] = v
	}

	counter := &gasCounter{remaining: gasLimit}
	rets, pan, err := e.run(fn, params, counter, 0)
	if err != nil {
		return nil, invErr(symbol, "%v", err)
	}

	out := &Outcome{
		GasUsed: gasLimit - counter.remaining,
		GasLeft: counter.remaining,
	}
	if pan != nil {
		out.Panic = pan
		return out, nil
	}

	if len(rets) != len(desc.ResultTypes) {
		return nil, invErr(symbol, "entry point returned %d values, descriptor declares %d",
			len(rets), len(desc.ResultTypes))
	}
	out.Result = make([]Arg, len(rets))
	for i := range rets {
		a, err := e.unmarshal(rets[i], desc.ResultTypes[i])
		if err != nil {
			return nil, invErr(symbol, "result %d: %v", i, err)
		}
		out.Result[i] = a
	}
	return out, nil
}

// gasCounter is the per-invocation budget, shared down the call chain.
type gasCounter struct {
	remaining uint64
}

func (g *gasCounter) charge(amount uint64) *rt.Panic {
	if g.remaining < amount {
		g.remaining = 0
		return rt.NewPanic(rt.PanicOutOfGas, "gas exhausted")
	}
	g.remaining -= amount
	return nil
}

func (g *gasCounter) withdraw(amount uint64) bool {
	if g.remaining < amount {
		return false
	}
	g.remaining -= amount
	return true
}

func (g *gasCounter) redeposit(amount uint64) {
	g.remaining += amount
}
