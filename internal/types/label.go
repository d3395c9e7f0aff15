package types

import "fmt"

// Label renders a human-readable name for a type, used by dumps and
// diagnostics. Unknown IDs render as "type#N" rather than failing.
func (in *Interner) Label(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	switch tt.Kind {
	case KindUnit:
		return "()"
	case KindBool:
		return "bool"
	case KindFelt:
		return "felt"
	case KindUint:
		return fmt.Sprintf("u%d", tt.Width)
	case KindStruct:
		if info, ok := in.StructInfo(id); ok && info.Name != "" {
			return info.Name
		}
		return fmt.Sprintf("struct#%d", id)
	case KindEnum:
		if info, ok := in.EnumInfo(id); ok && info.Name != "" {
			return info.Name
		}
		return fmt.Sprintf("enum#%d", id)
	case KindArray:
		return fmt.Sprintf("Array<%s>", in.Label(tt.Elem))
	case KindDict:
		return fmt.Sprintf("Dict<%s>", in.Label(tt.Elem))
	case KindBox:
		return fmt.Sprintf("Box<%s>", in.Label(tt.Elem))
	case KindNonZero:
		return fmt.Sprintf("NonZero<%s>", in.Label(tt.Elem))
	default:
		return fmt.Sprintf("type#%d", id)
	}
}
