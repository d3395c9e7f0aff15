package sir

// ValueID names an IR-level value within one function. Values obey the
// linear discipline: an owned value is consumed exactly once unless
// explicitly duplicated.
type ValueID uint32

// BlockID indexes a block within one function.
type BlockID uint32

// LibfuncID indexes a declared library-function instance in the program.
type LibfuncID uint32

// FuncID indexes a function in the program.
type FuncID uint32
