package layout

import (
	"tern/internal/types"
)

// FeltSize is the storage size of a field element: 252 bits of value in a
// fixed 32-byte little-endian encoding.
const FeltSize = 32

func (e *Engine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *Error) {
	typesIn := e.Types
	if typesIn == nil {
		return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: id}
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit:
		return TypeLayout{Size: 0, Align: 1}, nil

	case types.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil

	case types.KindFelt:
		return TypeLayout{Size: FeltSize, Align: e.ptrAlign()}, nil

	case types.KindUint:
		return scalarLayoutBytes(int(tt.Width) / 8), nil

	case types.KindStruct:
		return e.structLayout(id, state)

	case types.KindEnum:
		return e.enumLayout(id, state)

	case types.KindArray, types.KindDict:
		// Three-word header: data pointer, length, capacity. The element
		// region is separately allocated and resized by the runtime.
		if _, ok := typesIn.Lookup(tt.Elem); !ok {
			return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: tt.Elem}
		}
		w := e.ptrSize()
		return TypeLayout{Size: 3 * w, Align: e.ptrAlign(), Heap: true}, nil

	case types.KindBox:
		// Boxes are bare pointers; indirection breaks layout recursion.
		if _, ok := typesIn.Lookup(tt.Elem); !ok {
			return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: tt.Elem}
		}
		return TypeLayout{Size: e.ptrSize(), Align: e.ptrAlign(), Heap: true}, nil

	case types.KindNonZero:
		// Same representation as the wrapped type.
		return e.layoutOf(tt.Elem, state)

	default:
		return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: id}
	}
}

func (e *Engine) ptrSize() int {
	if e.Target.PtrSize > 0 {
		return e.Target.PtrSize
	}
	return 8
}

func (e *Engine) ptrAlign() int {
	if e.Target.PtrAlign > 0 {
		return e.Target.PtrAlign
	}
	return e.ptrSize()
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	align := size
	if align > 8 {
		align = 8 // u128 is two words, word-aligned
	}
	return TypeLayout{Size: size, Align: align}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e *Engine) structLayout(id types.TypeID, state *layoutState) (TypeLayout, *Error) {
	info, ok := e.Types.StructInfo(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: id}
	}
	if len(info.Fields) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	fields := info.Fields
	offsets := make([]int, len(fields))
	aligns := make([]int, len(fields))

	size := 0
	align := 1
	for i := range fields {
		fl, err := e.layoutOf(fields[i].Type, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		fAlign := fl.Align
		if fAlign <= 0 {
			fAlign = 1
		}
		size = roundUp(size, fAlign)
		offsets[i] = size
		aligns[i] = fAlign
		size += fl.Size
		align = maxInt(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
		FieldAligns:  aligns,
	}, nil
}

// tagSizeFor picks the minimal discriminant width covering the variant count.
func tagSizeFor(variants int) int {
	switch {
	case variants <= 1<<8:
		return 1
	case variants <= 1<<16:
		return 2
	default:
		return 4
	}
}

// enumLayout places a minimal-width discriminant followed by a payload
// region sized and aligned for the largest variant, so every branch
// destination on the enum sees a positionally compatible payload.
func (e *Engine) enumLayout(id types.TypeID, state *layoutState) (TypeLayout, *Error) {
	info, ok := e.Types.EnumInfo(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrUndeclared, Type: id}
	}
	if len(info.Variants) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	maxPayloadSize := 0
	payloadAlign := 1
	for _, v := range info.Variants {
		pl, err := e.layoutOf(v.Type, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		maxPayloadSize = maxInt(maxPayloadSize, pl.Size)
		payloadAlign = maxInt(payloadAlign, pl.Align)
	}

	tagSize := tagSizeFor(len(info.Variants))
	tagAlign := tagSize
	payloadOffset := roundUp(tagSize, payloadAlign)
	overallAlign := maxInt(tagAlign, payloadAlign)
	size := roundUp(payloadOffset+maxPayloadSize, overallAlign)
	return TypeLayout{
		Size:          size,
		Align:         overallAlign,
		TagSize:       tagSize,
		TagAlign:      tagAlign,
		PayloadOffset: payloadOffset,
	}, nil
}
