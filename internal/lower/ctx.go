package lower

import (
	"fmt"

	"tern/internal/diag"
	"tern/internal/native"
	"tern/internal/sir"
	"tern/internal/types"
)

// invocation carries one statement through its handler: the resolved
// signature, the consumed input registers, and the per-branch edge blocks
// the handler populates.
type invocation struct {
	st  *sir.Statement
	sig *sir.Signature
	loc diag.Loc

	in    []native.Reg
	edges []*edge
}

// edge is the trampoline block for one branch of a branching statement.
// Branch-specific instructions (payload extraction, carry materialization)
// land here, followed by copies into the target's parameter registers.
type edge struct {
	block     native.BlockID
	valueReg  map[sir.ValueID]native.Reg
	valueType map[sir.ValueID]types.TypeID
}

// define binds a statement output in the current block and reports it live.
// Used by straight-line handlers; branch outputs go through edgeDefine.
func (fc *funcLowerer) define(inv *invocation, outIdx int) native.Reg {
	v := inv.st.Outputs[outIdx]
	t := inv.sig.Outputs[outIdx]
	r := fc.newReg(t)
	fc.binding[v] = r
	fc.vtype[v] = t
	fc.live[v] = true
	return r
}

// defineAt binds a statement output to an existing register, used when an
// operation threads a handle through unchanged.
func (fc *funcLowerer) defineAt(inv *invocation, outIdx int, r native.Reg) {
	v := inv.st.Outputs[outIdx]
	fc.binding[v] = r
	fc.vtype[v] = inv.sig.Outputs[outIdx]
	fc.live[v] = true
}

// branchEdge creates (once) the trampoline block for branch i.
func (fc *funcLowerer) branchEdge(inv *invocation, i int) *edge {
	if inv.edges[i] == nil {
		inv.edges[i] = &edge{
			block:     fc.newBlock(),
			valueReg:  make(map[sir.ValueID]native.Reg, 2),
			valueType: make(map[sir.ValueID]types.TypeID, 2),
		}
	}
	return inv.edges[i]
}

// edgeDefine binds a statement output on one branch only. The value is
// live solely along that edge and must be passed to the branch target.
func (fc *funcLowerer) edgeDefine(inv *invocation, e *edge, outIdx int) native.Reg {
	v := inv.st.Outputs[outIdx]
	t := inv.sig.Outputs[outIdx]
	r := fc.newReg(t)
	e.valueReg[v] = r
	e.valueType[v] = t
	return r
}

// genericType resolves generic argument i of the invocation as a type.
func (fc *funcLowerer) genericType(inv *invocation, i int) (types.TypeID, error) {
	if i >= len(inv.sig.Generics) || inv.sig.Generics[i].Type == "" {
		return types.NoTypeID, fmt.Errorf("%q requires a type generic at position %d", inv.sig.Name, i)
	}
	id, ok := fc.res.TypeByName[inv.sig.Generics[i].Type]
	if !ok {
		return types.NoTypeID, fmt.Errorf("%q references undeclared type %q", inv.sig.Name, inv.sig.Generics[i].Type)
	}
	return id, nil
}

// genericValue resolves generic argument i as a literal, in base 10 or 0x.
func (fc *funcLowerer) genericValue(inv *invocation, i int) (string, error) {
	if i >= len(inv.sig.Generics) || inv.sig.Generics[i].Value == "" {
		return "", fmt.Errorf("%q requires a value generic at position %d", inv.sig.Name, i)
	}
	return inv.sig.Generics[i].Value, nil
}

func (fc *funcLowerer) wantBranches(inv *invocation, n int) error {
	if len(inv.st.Branches) != n {
		return fmt.Errorf("%q transfers control to %d targets, statement declares %d",
			inv.sig.Name, n, len(inv.st.Branches))
	}
	return nil
}

func (fc *funcLowerer) wantStraightLine(inv *invocation) error {
	if len(inv.st.Branches) != 0 {
		return fmt.Errorf("%q does not branch, statement declares %d targets",
			inv.sig.Name, len(inv.st.Branches))
	}
	return nil
}
