package rpx

// RPX section types, per the RPL extensions layered on top of standard ELF
// section types.
const (
	ShtNull        = 0
	ShtProgbits    = 1
	ShtSymtab      = 2
	ShtStrtab      = 3
	ShtRela        = 4
	ShtNobits      = 8
	ShtRel         = 9
	ShtRplExports  = 0x80000001
	ShtRplImports  = 0x80000002
	ShtRplCrcs     = 0x80000003
	ShtRplFileinfo = 0x80000004
)

// RPX section flags.
const (
	ShfWrite     = 0x1
	ShfAlloc     = 0x2
	ShfExecinstr = 0x4
	ShfRplZlib   = 0x08000000
)

// Derived classification flags, computed once at parse time so callers
// don't have to re-check the raw ELF flags/type on every access.
const (
	sectionFlagCode = 0x20
	sectionFlagData = 0x40
	sectionFlagBSS  = 0x80
)

// Section is a single loaded, decompressed section: its mapped address
// range, raw bytes, and a small set of derived classification flags.
type Section struct {
	Name   string
	Base   uint32
	Size   uint32
	Flags  uint32
	Type   uint32
	Data   []byte
}

// IsCode reports whether the section carries executable instructions.
func (s *Section) IsCode() bool { return s.Flags&sectionFlagCode != 0 }

// IsData reports whether the section is writable data.
func (s *Section) IsData() bool { return s.Flags&sectionFlagData != 0 }

// IsBSS reports whether the section has no on-disk payload (SHT_NOBITS).
func (s *Section) IsBSS() bool { return s.Flags&sectionFlagBSS != 0 }

// Contains reports whether addr falls within this section's mapped range.
func (s *Section) Contains(addr uint32) bool {
	return addr >= s.Base && addr < s.Base+s.Size
}
