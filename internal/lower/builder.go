package lower

import (
	"fmt"
	"sort"

	"fortio.org/safecast"

	"tern/internal/diag"
	"tern/internal/layout"
	"tern/internal/native"
	"tern/internal/sir"
	"tern/internal/types"
)

// blockState tracks block construction progress.
type blockState uint8

const (
	blockUnvisited blockState = iota
	blockInProgress
	blockSealed
)

// blockInfo is the builder's per-block bookkeeping. The first edge to
// reach a block fixes its formal parameter list; every later edge must
// match it positionally in arity and type.
type blockInfo struct {
	state      blockState
	native     native.BlockID
	params     []sir.ValueID
	paramTypes []types.TypeID
	paramRegs  []native.Reg
}

// funcLowerer lowers one function. It owns its block graph exclusively;
// the resolved program, layout engine and registry are shared read-only.
type funcLowerer struct {
	res      *sir.Resolved
	eng      *layout.Engine
	registry *Registry
	fn       *sir.Func
	bag      *diag.Bag

	out    *native.Func
	blocks []blockInfo
	work   []sir.BlockID

	// Emission state for the block currently being sealed.
	cur     native.BlockID
	binding map[sir.ValueID]native.Reg
	vtype   map[sir.ValueID]types.TypeID
	live    map[sir.ValueID]bool
}

func newFuncLowerer(res *sir.Resolved, eng *layout.Engine, registry *Registry, fn *sir.Func, bag *diag.Bag) *funcLowerer {
	return &funcLowerer{
		res:      res,
		eng:      eng,
		registry: registry,
		fn:       fn,
		bag:      bag,
		out:      &native.Func{Name: fn.Name, NumParams: len(fn.Params)},
		blocks:   make([]blockInfo, len(fn.Blocks)),
	}
}

// lower drives the state machine: blocks go unvisited -> in-progress ->
// sealed; the function is fully lowered when every reachable block is
// sealed and every owned value has been consumed on every path.
func (fc *funcLowerer) lower() (*native.Func, error) {
	entryParams := make([]sir.ValueID, 0, len(fc.fn.Params))
	entryTypes := make([]types.TypeID, 0, len(fc.fn.Params))
	entryRegs := make([]native.Reg, 0, len(fc.fn.Params))
	for _, p := range fc.fn.Params {
		t := fc.res.TypeOf(p.Type)
		entryParams = append(entryParams, p.ID)
		entryTypes = append(entryTypes, t)
		entryRegs = append(entryRegs, fc.newReg(t))
	}

	entry := fc.fn.Entry
	ei := &fc.blocks[entry]
	ei.state = blockInProgress
	ei.native = fc.newBlock()
	ei.params = entryParams
	ei.paramTypes = entryTypes
	ei.paramRegs = entryRegs
	fc.out.Entry = ei.native
	fc.work = append(fc.work, entry)

	for len(fc.work) > 0 {
		b := fc.work[0]
		fc.work = fc.work[1:]
		fc.sealBlock(b)
	}

	for bi := range fc.blocks {
		if fc.blocks[bi].state == blockUnvisited {
			fc.bag.Add(diag.New(diag.SevWarning, diag.LowerUnreachableBlock,
				diag.Loc{Func: fc.fn.Name, Block: bi, Stmt: -1}, "block is unreachable"))
		}
	}

	if err := fc.bag.Err(); err != nil {
		return nil, err
	}
	return fc.out, nil
}

func (fc *funcLowerer) sealBlock(b sir.BlockID) {
	bi := &fc.blocks[b]
	if bi.state == blockSealed {
		return
	}

	fc.cur = bi.native
	fc.binding = make(map[sir.ValueID]native.Reg, 8)
	fc.vtype = make(map[sir.ValueID]types.TypeID, 8)
	fc.live = make(map[sir.ValueID]bool, 8)
	for i, v := range bi.params {
		fc.binding[v] = bi.paramRegs[i]
		fc.vtype[v] = bi.paramTypes[i]
		fc.live[v] = true
	}

	blk := &fc.fn.Blocks[b]
	for si := range blk.Stmts {
		st := &blk.Stmts[si]
		loc := diag.At(fc.fn.Name, int(b), si)

		if fc.out.Blocks[fc.cur].Terminated() {
			fc.bag.Add(diag.NewError(diag.LowerUnsealedBlock, loc,
				"statement after control transfer is unreachable"))
			break
		}

		if st.Kind == sir.StmtReturn {
			fc.lowerReturn(st, loc)
			continue
		}
		fc.lowerInvoke(st, loc)
		if fc.bag.HasErrors() {
			break
		}
	}

	if !fc.bag.HasErrors() && !fc.out.Blocks[fc.cur].Terminated() {
		fc.bag.Add(diag.NewError(diag.LowerUnsealedBlock,
			diag.Loc{Func: fc.fn.Name, Block: int(b), Stmt: -1},
			"block ends without a control transfer"))
	}
	bi.state = blockSealed
}

func (fc *funcLowerer) lowerReturn(st *sir.Statement, loc diag.Loc) {
	if len(st.Inputs) != len(fc.fn.Results) {
		fc.bag.Add(diag.NewError(diag.LowerReturnMismatch, loc,
			fmt.Sprintf("return carries %d values, function declares %d",
				len(st.Inputs), len(fc.fn.Results))))
		return
	}
	regs := make([]native.Reg, 0, len(st.Inputs))
	for i, v := range st.Inputs {
		r, ok := fc.use(v, loc)
		if !ok {
			return
		}
		want := fc.res.TypeOf(fc.fn.Results[i])
		if got := fc.vtype[v]; got != want {
			fc.bag.Add(diag.NewError(diag.LowerReturnMismatch, loc,
				fmt.Sprintf("return value %d has type %s, function declares %s",
					i, fc.res.Types.Label(got), fc.res.Types.Label(want))))
			return
		}
		regs = append(regs, r)
	}
	fc.checkNoLeaks(loc)
	fc.terminate(native.Terminator{Kind: native.TermReturn, Return: native.ReturnTerm{Values: regs}})
}

func (fc *funcLowerer) lowerInvoke(st *sir.Statement, loc diag.Loc) {
	sig, ok := fc.res.Signature(st.Libfunc)
	if !ok {
		fc.bag.Add(diag.NewError(diag.LowerUnknownLibfunc, loc,
			fmt.Sprintf("statement references undeclared libfunc #%d", st.Libfunc)))
		return
	}
	handler, ok := fc.registry.Lookup(sig, loc, fc.bag)
	if !ok {
		return
	}

	if len(st.Inputs) != len(sig.Inputs) {
		fc.bag.Add(diag.NewError(diag.LowerArityMismatch, loc,
			fmt.Sprintf("%q takes %d inputs, statement supplies %d",
				sig.Key, len(sig.Inputs), len(st.Inputs))))
		return
	}
	if len(st.Outputs) != len(sig.Outputs) {
		fc.bag.Add(diag.NewError(diag.LowerArityMismatch, loc,
			fmt.Sprintf("%q produces %d outputs, statement binds %d",
				sig.Key, len(sig.Outputs), len(st.Outputs))))
		return
	}

	// Cost metering is injected ahead of the operation it prices.
	if st.Gas > 0 && sig.Name != "withdraw_gas" && sig.Name != "redeposit_gas" {
		fc.emit(native.Instr{Kind: native.InstrGasCharge, Gas: native.GasInstr{Amount: st.Gas, Ok: native.NoReg}})
	}

	inv := &invocation{
		st:    st,
		sig:   sig,
		loc:   loc,
		in:    make([]native.Reg, len(st.Inputs)),
		edges: make([]*edge, len(st.Branches)),
	}
	for i, v := range st.Inputs {
		r, ok := fc.use(v, loc)
		if !ok {
			return
		}
		if got := fc.vtype[v]; got != sig.Inputs[i] {
			fc.bag.Add(diag.NewError(diag.LowerTypeMismatch, loc,
				fmt.Sprintf("input %d of %q has type %s, signature declares %s",
					i, sig.Key, fc.res.Types.Label(got), fc.res.Types.Label(sig.Inputs[i]))))
			return
		}
		inv.in[i] = r
	}

	if err := handler(fc, inv); err != nil {
		fc.bag.Add(diag.NewError(diag.LowerBadGenericArgs, loc, err.Error()))
		return
	}

	if len(st.Branches) > 0 {
		fc.finishEdges(inv)
	}
}

// use consumes an owned value: referencing a value that was already
// consumed, or never defined on this path, is a build-time error.
func (fc *funcLowerer) use(v sir.ValueID, loc diag.Loc) (native.Reg, bool) {
	if fc.live[v] {
		delete(fc.live, v)
		return fc.binding[v], true
	}
	if _, known := fc.binding[v]; known {
		fc.bag.Add(diag.NewError(diag.LowerConsumedValue, loc,
			fmt.Sprintf("value v%d was already consumed", v)))
	} else {
		fc.bag.Add(diag.NewError(diag.LowerUnknownValue, loc,
			fmt.Sprintf("value v%d is not live in this block", v)))
	}
	return native.NoReg, false
}

// checkNoLeaks reports owned values still live at a function exit.
func (fc *funcLowerer) checkNoLeaks(loc diag.Loc) {
	if len(fc.live) == 0 {
		return
	}
	leaked := make([]sir.ValueID, 0, len(fc.live))
	for v := range fc.live {
		leaked = append(leaked, v)
	}
	sort.Slice(leaked, func(i, j int) bool { return leaked[i] < leaked[j] })
	for _, v := range leaked {
		fc.bag.Add(diag.NewError(diag.LowerLeakedValue, loc,
			fmt.Sprintf("owned value v%d is never consumed on this path", v)))
	}
}

// finishEdges validates each branch's live-value list and wires the edge
// trampoline blocks into their targets.
func (fc *funcLowerer) finishEdges(inv *invocation) {
	for i := range inv.st.Branches {
		br := &inv.st.Branches[i]
		e := inv.edges[i]
		if e == nil {
			fc.bag.Add(diag.NewError(diag.LowerBranchMismatch, inv.loc,
				fmt.Sprintf("%q does not produce branch %d declared by the statement", inv.sig.Key, i)))
			return
		}

		// Values available on this edge: the surviving live set plus the
		// outputs this branch defines. Every one of them must be passed,
		// exactly once - anything else is a leak or a double use.
		argSeen := make(map[sir.ValueID]bool, len(br.Args))
		argTypes := make([]types.TypeID, 0, len(br.Args))
		argRegs := make([]native.Reg, 0, len(br.Args))
		ok := true
		for _, a := range br.Args {
			if argSeen[a] {
				fc.bag.Add(diag.NewError(diag.LowerConsumedValue, inv.loc,
					fmt.Sprintf("value v%d passed twice on branch %d", a, i)))
				ok = false
				continue
			}
			argSeen[a] = true
			if r, defined := e.valueReg[a]; defined {
				argRegs = append(argRegs, r)
				argTypes = append(argTypes, e.valueType[a])
				continue
			}
			if fc.live[a] {
				argRegs = append(argRegs, fc.binding[a])
				argTypes = append(argTypes, fc.vtype[a])
				continue
			}
			fc.bag.Add(diag.NewError(diag.LowerUnknownValue, inv.loc,
				fmt.Sprintf("value v%d is not live on branch %d", a, i)))
			ok = false
		}
		for v := range fc.live {
			if !argSeen[v] {
				fc.bag.Add(diag.NewError(diag.LowerLeakedValue, inv.loc,
					fmt.Sprintf("owned value v%d is not passed on branch %d", v, i)))
				ok = false
			}
		}
		for v := range e.valueReg {
			if !argSeen[v] {
				fc.bag.Add(diag.NewError(diag.LowerLeakedValue, inv.loc,
					fmt.Sprintf("branch %d output v%d is not passed to the target", i, v)))
				ok = false
			}
		}
		if !ok {
			return
		}

		fc.bindEdge(e, br, argRegs, argTypes, inv.loc)
		if fc.bag.HasErrors() {
			return
		}
	}

	// The statement consumed the live set: every surviving value now lives
	// in a successor block's formal parameters.
	fc.live = make(map[sir.ValueID]bool)
}

// bindEdge fixes (or checks) the target's formal parameters and emits the
// trampoline: copies into the parameter registers, then a goto.
func (fc *funcLowerer) bindEdge(e *edge, br *sir.BranchTarget, argRegs []native.Reg, argTypes []types.TypeID, loc diag.Loc) {
	ti := &fc.blocks[br.Block]
	if ti.state == blockUnvisited {
		ti.state = blockInProgress
		ti.native = fc.newBlock()
		ti.params = append([]sir.ValueID(nil), br.Args...)
		ti.paramTypes = append([]types.TypeID(nil), argTypes...)
		ti.paramRegs = make([]native.Reg, 0, len(argTypes))
		for _, t := range argTypes {
			ti.paramRegs = append(ti.paramRegs, fc.newReg(t))
		}
		fc.work = append(fc.work, br.Block)
	} else {
		if len(br.Args) != len(ti.params) {
			fc.bag.Add(diag.NewError(diag.LowerBranchMismatch, loc,
				fmt.Sprintf("branch passes %d values to bb%d, first arrival fixed %d",
					len(br.Args), br.Block, len(ti.params))))
			return
		}
		for j, t := range argTypes {
			if t != ti.paramTypes[j] {
				fc.bag.Add(diag.NewError(diag.LowerBranchMismatch, loc,
					fmt.Sprintf("branch value %d to bb%d has type %s, first arrival fixed %s",
						j, br.Block, fc.res.Types.Label(t), fc.res.Types.Label(ti.paramTypes[j]))))
				return
			}
		}
	}

	for j, src := range argRegs {
		dst := ti.paramRegs[j]
		if src != dst {
			fc.emitTo(e.block, native.Instr{Kind: native.InstrCopy, Copy: native.CopyInstr{Dst: dst, Src: src}})
		}
	}
	fc.terminateIn(e.block, native.Terminator{Kind: native.TermGoto, Goto: native.GotoTerm{Target: ti.native}})
}

// Emission helpers -----------------------------------------------------------

func (fc *funcLowerer) newReg(t types.TypeID) native.Reg {
	n, err := safecast.Conv[uint32](len(fc.out.RegTypes))
	if err != nil {
		panic(fmt.Errorf("register count overflow: %w", err))
	}
	fc.out.RegTypes = append(fc.out.RegTypes, t)
	return native.Reg(n)
}

func (fc *funcLowerer) newBlock() native.BlockID {
	id := native.BlockID(len(fc.out.Blocks))
	fc.out.Blocks = append(fc.out.Blocks, native.Block{ID: id})
	return id
}

func (fc *funcLowerer) emit(ins native.Instr) {
	fc.emitTo(fc.cur, ins)
}

func (fc *funcLowerer) emitTo(b native.BlockID, ins native.Instr) {
	fc.out.Blocks[b].Instrs = append(fc.out.Blocks[b].Instrs, ins)
}

func (fc *funcLowerer) terminate(t native.Terminator) {
	fc.terminateIn(fc.cur, t)
}

func (fc *funcLowerer) terminateIn(b native.BlockID, t native.Terminator) {
	if fc.out.Blocks[b].Terminated() {
		panic("lower: double terminator")
	}
	fc.out.Blocks[b].Term = t
}
