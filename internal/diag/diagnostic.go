package diag

import "fmt"

// Loc pins a diagnostic to a place in the IR: a function, a block within
// it, and a statement within the block. Negative indices mean "not
// applicable" (e.g. a whole-function diagnostic).
type Loc struct {
	Func  string
	Block int
	Stmt  int
}

// NoLoc is a location for program-wide diagnostics.
var NoLoc = Loc{Block: -1, Stmt: -1}

// FuncLoc pins a diagnostic to a whole function.
func FuncLoc(fn string) Loc {
	return Loc{Func: fn, Block: -1, Stmt: -1}
}

// At pins a diagnostic to a statement.
func At(fn string, block, stmt int) Loc {
	return Loc{Func: fn, Block: block, Stmt: stmt}
}

func (l Loc) String() string {
	switch {
	case l.Func == "":
		return "program"
	case l.Block < 0:
		return l.Func
	case l.Stmt < 0:
		return fmt.Sprintf("%s/bb%d", l.Func, l.Block)
	default:
		return fmt.Sprintf("%s/bb%d/#%d", l.Func, l.Block, l.Stmt)
	}
}

type Note struct {
	Loc Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Loc
	Notes    []Note
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s[%s] %s: %s", d.Severity, d.Code, d.Primary, d.Message)
}
