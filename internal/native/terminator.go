package native

// TermKind enumerates control transfers out of a block.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermBrBool
	TermBrTag
	TermReturn
	TermPanic
)

// Terminator ends a block with exactly one control transfer.
type Terminator struct {
	Kind TermKind

	Goto   GotoTerm
	BrBool BrBoolTerm
	BrTag  BrTagTerm
	Return ReturnTerm
	Panic  PanicTerm
}

type GotoTerm struct {
	Target BlockID
}

type BrBoolTerm struct {
	Cond  Reg
	True  BlockID
	False BlockID
}

// BrTagTerm dispatches on an enum discriminant; Cases is indexed by
// variant ordinal and must cover the closed variant set exactly.
type BrTagTerm struct {
	Src   Reg
	Cases []BlockID
}

type ReturnTerm struct {
	Values []Reg
}

// PanicTerm raises a runtime panic with the given code and, when Payload
// is not NoReg, the payload value.
type PanicTerm struct {
	Code    uint32
	Payload Reg
}
