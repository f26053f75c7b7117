// Package jumptable recognizes the canonical PowerPC jump-table dispatch
// sequences the Wii U's compiler emits for switch statements, and
// reconstructs the case target list each one encodes.
package jumptable

// Variant names one of the four recognized dispatch shapes.
type Variant int

const (
	Absolute Variant = iota
	Computed
	ByteOffset
	ShortOffset
)

func (v Variant) String() string {
	switch v {
	case Absolute:
		return "absolute"
	case Computed:
		return "computed"
	case ByteOffset:
		return "byte_offset"
	case ShortOffset:
		return "short_offset"
	default:
		return "unknown"
	}
}

// Table is one recognized jump table: the dispatch code's address, the
// register driving it, the default (out-of-range) target, and the
// reconstructed ordered list of case targets.
type Table struct {
	Base    uint32
	Variant Variant
	Reg     int
	Default uint32
	Labels  []uint32
}

// Contains reports whether addr falls within the dispatch sequence this
// table was recognized from (used by the Translator to find the table
// covering a given bctr site).
func (t Table) Contains(addr, length uint32) bool {
	return addr >= t.Base && addr < t.Base+length
}
