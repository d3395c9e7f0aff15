// Package pipeline orchestrates a whole compilation: decode, resolve,
// lower, describe. It reports per-function progress through a sink so
// interactive frontends can render it without knowing the phases.
package pipeline

import (
	"time"

	"tern/internal/diag"
	"tern/internal/gas"
	"tern/internal/layout"
	"tern/internal/lower"
	"tern/internal/native"
	"tern/internal/sir"
)

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageDecode covers deserialization and structural validation.
	StageDecode Stage = "decode"
	// StageResolve covers type interning and signature resolution.
	StageResolve Stage = "resolve"
	// StageLower covers per-function code generation.
	StageLower Stage = "lower"
	// StageRun is execution of a compiled entry point.
	StageRun Stage = "run"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one function, or for the overall pipeline
// when Func is empty.
type Event struct {
	Func    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// Request configures one compilation.
type Request struct {
	// Source is the serialized program.
	Source []byte
	Target layout.Target
	Model  *gas.CostModel
	// Workers bounds concurrent function lowerings; 0 means GOMAXPROCS.
	Workers int
	// MaxDiagnostics caps collected diagnostics; 0 means 100.
	MaxDiagnostics int
	Progress       ProgressSink
}

// Result is the finished compilation.
type Result struct {
	Resolved *sir.Resolved
	Module   *native.Module
	Bag      *diag.Bag
	Elapsed  time.Duration
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}

// FuncNames decodes just enough of a program to list its functions, so a
// frontend can seed its progress display before compiling.
func FuncNames(source []byte) []string {
	bag := diag.NewBag(1)
	prog, err := sir.Decode(source, bag)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(prog.Funcs))
	for i := range prog.Funcs {
		names = append(names, prog.Funcs[i].Name)
	}
	return names
}

// Compile runs the full pipeline. The returned bag carries diagnostics
// even on success; a non-nil error means compilation did not produce a
// module.
func Compile(req Request) (*Result, error) {
	start := time.Now()
	maxDiags := req.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = 100
	}
	bag := diag.NewBag(maxDiags)
	out := &Result{Bag: bag}

	emit(req.Progress, Event{Stage: StageDecode, Status: StatusWorking})
	prog, err := sir.Decode(req.Source, bag)
	if err != nil {
		emit(req.Progress, Event{Stage: StageDecode, Status: StatusError, Err: err})
		return out, err
	}

	emit(req.Progress, Event{Stage: StageResolve, Status: StatusWorking})
	res, err := sir.Resolve(prog, bag)
	if err != nil {
		emit(req.Progress, Event{Stage: StageResolve, Status: StatusError, Err: err})
		return out, err
	}
	out.Resolved = res

	for i := range prog.Funcs {
		emit(req.Progress, Event{Func: prog.Funcs[i].Name, Stage: StageLower, Status: StatusQueued})
	}
	emit(req.Progress, Event{Stage: StageLower, Status: StatusWorking})
	mod, err := lower.Program(res, lower.Options{
		Target:  req.Target,
		Model:   req.Model,
		Workers: req.Workers,
		OnFunc: func(name string, failed bool) {
			status := StatusDone
			if failed {
				status = StatusError
			}
			emit(req.Progress, Event{Func: name, Stage: StageLower, Status: status})
		},
	}, bag)
	if err != nil {
		emit(req.Progress, Event{Stage: StageLower, Status: StatusError, Err: err})
		return out, err
	}
	out.Module = mod
	out.Elapsed = time.Since(start)
	emit(req.Progress, Event{Stage: StageLower, Status: StatusDone, Elapsed: out.Elapsed})
	return out, nil
}
