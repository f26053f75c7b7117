package rpx

import (
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Sentinel errors for the image loader's named failure modes.
var (
	ErrTooShort       = errors.New("rpx: file too short for an ELF header")
	ErrBadMagic       = errors.New("rpx: not an ELF file")
	ErrNot32Bit       = errors.New("rpx: not a 32-bit ELF (EI_CLASS != ELFCLASS32)")
	ErrNotBigEndian   = errors.New("rpx: not a big-endian ELF (EI_DATA != ELFDATA2MSB)")
	ErrWrongMachine   = errors.New("rpx: e_machine is not PowerPC (EM_PPC = 20)")
	ErrNoSectionTable = errors.New("rpx: no section header table")
)

// emPPC is the ELF e_machine value for PowerPC, the only architecture an
// RPX image may target.
const emPPC = 20

// Image is a fully parsed RPX file: its section/program headers, the
// decompressed section payloads, and the derived symbol table.
type Image struct {
	Data []byte

	Base       uint32
	Size       uint32
	EntryPoint uint32

	TextBase, TextSize uint32
	DataBase, DataSize uint32

	ElfHeader      ElfHeader
	SectionHeaders []SectionHeader
	ProgramHeaders []ProgramHeader
	Sections       []Section

	Symbols *SymbolStore

	shStrTab []byte
}

// Load parses an RPX image from raw file bytes.
func Load(data []byte) (*Image, error) {
	img := &Image{Symbols: newSymbolStore()}

	hdr, ok := decodeElfHeader(data)
	if !ok {
		return nil, ErrTooShort
	}
	if hdr.Ident[0] != 0x7F || hdr.Ident[1] != 'E' || hdr.Ident[2] != 'L' || hdr.Ident[3] != 'F' {
		return nil, ErrBadMagic
	}
	if hdr.Ident[4] != 1 { // EI_CLASS: ELFCLASS32
		return nil, ErrNot32Bit
	}
	if hdr.Ident[5] != 2 { // EI_DATA: ELFDATA2MSB
		return nil, ErrNotBigEndian
	}
	if hdr.Machine != emPPC {
		return nil, ErrWrongMachine
	}

	img.ElfHeader = hdr
	img.EntryPoint = hdr.Entry
	img.Data = data
	img.Size = uint32(len(data))

	if err := img.parseSectionHeaders(data); err != nil {
		return nil, err
	}
	if err := img.parseProgramHeaders(data); err != nil {
		return nil, err
	}
	if err := img.parseSections(data); err != nil {
		return nil, err
	}

	img.loadSymbols()

	return img, nil
}

func (img *Image) parseSectionHeaders(data []byte) error {
	hdr := img.ElfHeader
	if hdr.ShOff == 0 || hdr.ShNum == 0 {
		return ErrNoSectionTable
	}
	end := int(hdr.ShOff) + int(hdr.ShNum)*sectionHeaderSize
	if end > len(data) {
		return errors.New("rpx: section header table runs past end of file")
	}

	img.SectionHeaders = make([]SectionHeader, hdr.ShNum)
	for i := 0; i < int(hdr.ShNum); i++ {
		off := int(hdr.ShOff) + i*sectionHeaderSize
		img.SectionHeaders[i] = decodeSectionHeader(data[off : off+sectionHeaderSize])
	}
	return nil
}

func (img *Image) parseProgramHeaders(data []byte) error {
	hdr := img.ElfHeader
	if hdr.PhOff == 0 || hdr.PhNum == 0 {
		return nil // absent program headers are not an error
	}
	end := int(hdr.PhOff) + int(hdr.PhNum)*programHeaderSize
	if end > len(data) {
		return errors.New("rpx: program header table runs past end of file")
	}

	img.ProgramHeaders = make([]ProgramHeader, hdr.PhNum)
	for i := 0; i < int(hdr.PhNum); i++ {
		off := int(hdr.PhOff) + i*programHeaderSize
		img.ProgramHeaders[i] = decodeProgramHeader(data[off : off+programHeaderSize])
	}
	return nil
}

func (img *Image) parseSections(data []byte) error {
	if len(img.SectionHeaders) == 0 {
		return ErrNoSectionTable
	}

	if int(img.ElfHeader.ShStrNdx) < len(img.SectionHeaders) {
		strtab := img.SectionHeaders[img.ElfHeader.ShStrNdx]
		if int(strtab.Offset) < len(data) && strtab.Size > 0 {
			end := strtab.Offset + strtab.Size
			if end > uint32(len(data)) {
				end = uint32(len(data))
			}
			img.shStrTab = data[strtab.Offset:end]
		}
	}

	img.Sections = make([]Section, 0, len(img.SectionHeaders))
	for _, sh := range img.SectionHeaders {
		sec := Section{
			Base:  sh.Addr,
			Size:  sh.Size,
			Flags: sh.Flags,
			Type:  sh.Type,
			Name:  img.sectionName(sh.Name),
		}

		if sh.Type != ShtNobits && sh.Size > 0 && int(sh.Offset) < len(data) {
			avail := uint32(len(data)) - sh.Offset
			take := sh.Size
			if avail < take {
				take = avail
			}
			raw := data[sh.Offset : sh.Offset+take]

			if sh.Flags&ShfRplZlib != 0 {
				decompressed, err := decompressSection(raw, sh.Size)
				if err != nil {
					log.Warnf("rpx: section %q failed to inflate: %v", sec.Name, err)
					decompressed = make([]byte, sh.Size)
				}
				sec.Data = decompressed
			} else {
				sec.Data = make([]byte, sh.Size)
				copy(sec.Data, raw)
			}
		}

		if sh.Flags&ShfExecinstr != 0 {
			sec.Flags |= sectionFlagCode
		}
		if sh.Flags&ShfWrite != 0 {
			sec.Flags |= sectionFlagData
		}
		if sh.Type == ShtNobits {
			sec.Flags |= sectionFlagBSS
		}

		switch {
		case sec.Name == ".text" && sec.IsCode():
			img.TextBase, img.TextSize = sec.Base, sec.Size
		case sec.Name == ".data" && sec.IsData():
			img.DataBase, img.DataSize = sec.Base, sec.Size
		}

		img.Sections = append(img.Sections, sec)
	}

	img.Base = ^uint32(0)
	for i := range img.Sections {
		if b := img.Sections[i].Base; b > 0 && b < img.Base {
			img.Base = b
		}
	}
	if img.Base == ^uint32(0) {
		img.Base = 0
	}

	return nil
}

// sectionName resolves a section name's byte offset into .shstrtab, per
// GetSectionName.
func (img *Image) sectionName(nameOffset uint32) string {
	if int(nameOffset) >= len(img.shStrTab) {
		return ""
	}
	return cString(img.shStrTab[nameOffset:])
}

// Find returns a pointer into the decompressed section data backing addr,
// or nil if addr isn't covered by any loaded section.
func (img *Image) Find(addr uint32) []byte {
	for i := range img.Sections {
		sec := &img.Sections[i]
		if sec.Contains(addr) && sec.Data != nil {
			return sec.Data[addr-sec.Base:]
		}
	}
	return nil
}

// Section returns the section with the given name, if any.
func (img *Image) Section(name string) *Section {
	for i := range img.Sections {
		if img.Sections[i].Name == name {
			return &img.Sections[i]
		}
	}
	return nil
}

// CodeSections returns every section flagged executable.
func (img *Image) CodeSections() []*Section {
	var out []*Section
	for i := range img.Sections {
		if img.Sections[i].IsCode() {
			out = append(out, &img.Sections[i])
		}
	}
	return out
}

// RelocationSections returns sections whose name is prefixed with ".rela"
// or ".rel" — recognized but, matching the original loader and spec's
// stated scope, not resolved into applied relocations.
func (img *Image) RelocationSections() []*Section {
	var out []*Section
	for i := range img.Sections {
		name := img.Sections[i].Name
		if strings.HasPrefix(name, ".rela") || strings.HasPrefix(name, ".rel") {
			out = append(out, &img.Sections[i])
		}
	}
	return out
}

func (img *Image) loadSymbols() {
	symtab := img.Section(".symtab")
	strtab := img.Section(".strtab")
	if symtab == nil || strtab == nil || symtab.Data == nil || strtab.Data == nil {
		return
	}

	count := int(symtab.Size) / symbolEntrySize
	for i := 0; i < count; i++ {
		off := i * symbolEntrySize
		if off+symbolEntrySize > len(symtab.Data) {
			break
		}
		entry := decodeSymbolEntry(symtab.Data[off : off+symbolEntrySize])
		if int(entry.NameOff) >= len(strtab.Data) {
			continue
		}
		name := cString(strtab.Data[entry.NameOff:])
		if name == "" || entry.Size == 0 {
			continue
		}

		symType := SymbolFunction
		switch entry.Info & 0xF {
		case 1: // STT_OBJECT
			symType = SymbolData
		case 2: // STT_FUNC
			symType = SymbolFunction
		}

		if _, exists := img.Symbols.Get(entry.Value); exists {
			continue // first symbol at an address wins
		}
		img.Symbols.Add(Symbol{Name: name, Address: entry.Value, Size: entry.Size, Type: symType})
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// RenameEntrySymbol renames whatever symbol sits at the image's entry
// point to "_start", matching the original recompiler's main() setup.
func (img *Image) RenameEntrySymbol() {
	if sym, ok := img.Symbols.Get(img.EntryPoint); ok {
		renamed := *sym
		renamed.Name = "_start"
		img.Symbols.Add(renamed)
	}
}
