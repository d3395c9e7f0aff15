package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Program input validation (decode/resolve)
	InputInfo              Code = 1000
	InputBadEncoding       Code = 1001
	InputUndeclaredType    Code = 1002
	InputUndeclaredLibfunc Code = 1003
	InputBlockOutOfRange   Code = 1004
	InputBadTerminator     Code = 1005
	InputDuplicateDecl     Code = 1006
	InputBadSignature      Code = 1007
	InputBadEntry          Code = 1008
	InputTypeCycle         Code = 1009

	// Type layout resolution
	LayoutInfo             Code = 2000
	LayoutRecursiveUnsized Code = 2001
	LayoutUndeclaredElem   Code = 2002
	LayoutTooLarge         Code = 2003

	// Lowering and block construction
	LowerInfo             Code = 3000
	LowerUnknownLibfunc   Code = 3001
	LowerArityMismatch    Code = 3002
	LowerTypeMismatch     Code = 3003
	LowerConsumedValue    Code = 3004
	LowerUnknownValue     Code = 3005
	LowerLeakedValue      Code = 3006
	LowerBranchMismatch   Code = 3007
	LowerUnsealedBlock    Code = 3008
	LowerBadGenericArgs   Code = 3009
	LowerReturnMismatch   Code = 3010
	LowerUnreachableBlock Code = 3011

	// Gas and metadata accounting
	GasInfo          Code = 4000
	GasUndefinedCost Code = 4001
	GasBadTable      Code = 4002
)

func (c Code) String() string {
	return fmt.Sprintf("TRN%04d", uint16(c))
}
