package rpx

import "testing"

// buildImageWithDuplicateSymbols extends the minimal image with a .symtab/
// .strtab pair holding two STT_FUNC entries at the same address, to exercise
// loadSymbols' first-wins rule end to end through Load.
func buildImageWithDuplicateSymbols() []byte {
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")
	text := []byte{0x7C, 0x03, 0x1A, 0x14, 0x4E, 0x80, 0x00, 0x20}
	strtab := []byte("\x00first\x00second\x00")

	symtab := make([]byte, 2*symbolEntrySize)
	writeSym := func(i int, nameOff, value, size uint32, info uint8) {
		off := i * symbolEntrySize
		byteOrder.PutUint32(symtab[off:off+4], nameOff)
		byteOrder.PutUint32(symtab[off+4:off+8], value)
		byteOrder.PutUint32(symtab[off+8:off+12], size)
		symtab[off+12] = info
	}
	writeSym(0, 1, 0x1000, 4, 2) // "first" @ 0x1000, STT_FUNC
	writeSym(1, 7, 0x1000, 4, 2) // "second" @ 0x1000 too — must lose

	const (
		shOff       = elfHeaderSize
		shCount     = 5
		shTableSize = shCount * sectionHeaderSize
	)
	textOff := shOff + shTableSize
	symtabOff := textOff + len(text)
	strtabOff := symtabOff + len(symtab)
	shstrtabOff := strtabOff + len(strtab)

	buf := make([]byte, shstrtabOff+len(shstrtab))

	hdr := buf[0:elfHeaderSize]
	hdr[0], hdr[1], hdr[2], hdr[3] = 0x7F, 'E', 'L', 'F'
	hdr[4] = 1
	hdr[5] = 2
	byteOrder.PutUint16(hdr[16:18], 2)
	byteOrder.PutUint16(hdr[18:20], emPPC)
	byteOrder.PutUint32(hdr[20:24], 1)
	byteOrder.PutUint32(hdr[24:28], 0x1000)
	byteOrder.PutUint32(hdr[32:36], uint32(shOff))
	byteOrder.PutUint16(hdr[40:42], elfHeaderSize)
	byteOrder.PutUint16(hdr[42:44], programHeaderSize)
	byteOrder.PutUint16(hdr[46:48], sectionHeaderSize)
	byteOrder.PutUint16(hdr[48:50], shCount)
	byteOrder.PutUint16(hdr[50:52], 4) // e_shstrndx

	writeSH := func(i int, name, typ, flags, addr, offset, size, link, entsize uint32) {
		off := shOff + i*sectionHeaderSize
		sh := buf[off : off+sectionHeaderSize]
		byteOrder.PutUint32(sh[0:4], name)
		byteOrder.PutUint32(sh[4:8], typ)
		byteOrder.PutUint32(sh[8:12], flags)
		byteOrder.PutUint32(sh[12:16], addr)
		byteOrder.PutUint32(sh[16:20], offset)
		byteOrder.PutUint32(sh[20:24], size)
		byteOrder.PutUint32(sh[24:28], link)
		byteOrder.PutUint32(sh[36:40], entsize)
	}
	writeSH(0, 0, ShtNull, 0, 0, 0, 0, 0, 0)
	writeSH(1, 1, ShtProgbits, ShfAlloc|ShfExecinstr, 0x1000, uint32(textOff), uint32(len(text)), 0, 0)
	writeSH(2, 7, ShtSymtab, 0, 0, uint32(symtabOff), uint32(len(symtab)), 3, symbolEntrySize)
	writeSH(3, 15, ShtStrtab, 0, 0, uint32(strtabOff), uint32(len(strtab)), 0, 0)
	writeSH(4, 23, ShtStrtab, 0, 0, uint32(shstrtabOff), uint32(len(shstrtab)), 0, 0)

	copy(buf[textOff:], text)
	copy(buf[symtabOff:], symtab)
	copy(buf[strtabOff:], strtab)
	copy(buf[shstrtabOff:], shstrtab)

	return buf
}

// buildImageWithZeroSizeSymbol extends the minimal image with a .symtab/
// .strtab pair holding a named but zero-size STT_FUNC entry alongside a
// normal one, to exercise loadSymbols' zero-length filter end to end
// through Load.
func buildImageWithZeroSizeSymbol() []byte {
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")
	text := []byte{0x7C, 0x03, 0x1A, 0x14, 0x4E, 0x80, 0x00, 0x20}
	strtab := []byte("\x00empty\x00real\x00")

	symtab := make([]byte, 2*symbolEntrySize)
	writeSym := func(i int, nameOff, value, size uint32, info uint8) {
		off := i * symbolEntrySize
		byteOrder.PutUint32(symtab[off:off+4], nameOff)
		byteOrder.PutUint32(symtab[off+4:off+8], value)
		byteOrder.PutUint32(symtab[off+8:off+12], size)
		symtab[off+12] = info
	}
	writeSym(0, 1, 0x1000, 0, 2) // "empty" @ 0x1000, size 0 — must be dropped
	writeSym(1, 7, 0x1004, 4, 2) // "real" @ 0x1004

	const (
		shOff       = elfHeaderSize
		shCount     = 5
		shTableSize = shCount * sectionHeaderSize
	)
	textOff := shOff + shTableSize
	symtabOff := textOff + len(text)
	strtabOff := symtabOff + len(symtab)
	shstrtabOff := strtabOff + len(strtab)

	buf := make([]byte, shstrtabOff+len(shstrtab))

	hdr := buf[0:elfHeaderSize]
	hdr[0], hdr[1], hdr[2], hdr[3] = 0x7F, 'E', 'L', 'F'
	hdr[4] = 1
	hdr[5] = 2
	byteOrder.PutUint16(hdr[16:18], 2)
	byteOrder.PutUint16(hdr[18:20], emPPC)
	byteOrder.PutUint32(hdr[20:24], 1)
	byteOrder.PutUint32(hdr[24:28], 0x1000)
	byteOrder.PutUint32(hdr[32:36], uint32(shOff))
	byteOrder.PutUint16(hdr[40:42], elfHeaderSize)
	byteOrder.PutUint16(hdr[42:44], programHeaderSize)
	byteOrder.PutUint16(hdr[46:48], sectionHeaderSize)
	byteOrder.PutUint16(hdr[48:50], shCount)
	byteOrder.PutUint16(hdr[50:52], 4) // e_shstrndx

	writeSH := func(i int, name, typ, flags, addr, offset, size, link, entsize uint32) {
		off := shOff + i*sectionHeaderSize
		sh := buf[off : off+sectionHeaderSize]
		byteOrder.PutUint32(sh[0:4], name)
		byteOrder.PutUint32(sh[4:8], typ)
		byteOrder.PutUint32(sh[8:12], flags)
		byteOrder.PutUint32(sh[12:16], addr)
		byteOrder.PutUint32(sh[16:20], offset)
		byteOrder.PutUint32(sh[20:24], size)
		byteOrder.PutUint32(sh[24:28], link)
		byteOrder.PutUint32(sh[36:40], entsize)
	}
	writeSH(0, 0, ShtNull, 0, 0, 0, 0, 0, 0)
	writeSH(1, 1, ShtProgbits, ShfAlloc|ShfExecinstr, 0x1000, uint32(textOff), uint32(len(text)), 0, 0)
	writeSH(2, 7, ShtSymtab, 0, 0, uint32(symtabOff), uint32(len(symtab)), 3, symbolEntrySize)
	writeSH(3, 15, ShtStrtab, 0, 0, uint32(strtabOff), uint32(len(strtab)), 0, 0)
	writeSH(4, 23, ShtStrtab, 0, 0, uint32(shstrtabOff), uint32(len(shstrtab)), 0, 0)

	copy(buf[textOff:], text)
	copy(buf[symtabOff:], symtab)
	copy(buf[strtabOff:], strtab)
	copy(buf[shstrtabOff:], shstrtab)

	return buf
}

func TestSymbolStoreDropsZeroSizeEntries(t *testing.T) {
	img, err := Load(buildImageWithZeroSizeSymbol())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := img.Symbols.Get(0x1000); ok {
		t.Fatalf("expected the zero-size entry at 0x1000 to be dropped")
	}
	sym, ok := img.Symbols.Get(0x1004)
	if !ok || sym.Name != "real" {
		t.Fatalf("expected the real entry at 0x1004 to survive, got %v ok=%v", sym, ok)
	}
}

func TestSymbolStoreFirstWins(t *testing.T) {
	img, err := Load(buildImageWithDuplicateSymbols())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sym, ok := img.Symbols.Get(0x1000)
	if !ok {
		t.Fatalf("expected a symbol at 0x1000")
	}
	if sym.Name != "first" {
		t.Fatalf("expected the first .symtab entry to win, got %q", sym.Name)
	}
}

func TestSymbolStoreFunctionsSortedByAddress(t *testing.T) {
	s := newSymbolStore()
	s.Add(Symbol{Name: "c", Address: 0x300, Type: SymbolFunction})
	s.Add(Symbol{Name: "a", Address: 0x100, Type: SymbolFunction})
	s.Add(Symbol{Name: "data1", Address: 0x200, Type: SymbolData})
	s.Add(Symbol{Name: "b", Address: 0x200, Type: SymbolFunction})

	fns := s.Functions()
	if len(fns) != 3 {
		t.Fatalf("expected 3 function symbols, got %d", len(fns))
	}
	for i := 1; i < len(fns); i++ {
		if fns[i-1].Address > fns[i].Address {
			t.Fatalf("Functions() not sorted by address: %v", fns)
		}
	}
}

func TestSymbolStoreFindByName(t *testing.T) {
	s := newSymbolStore()
	s.Add(Symbol{Name: "func_main", Address: 0x02000000, Type: SymbolFunction})
	sym, ok := s.Find("func_main")
	if !ok || sym.Address != 0x02000000 {
		t.Fatalf("expected to find func_main at 0x02000000, got %v ok=%v", sym, ok)
	}
	if _, ok := s.Find("does_not_exist"); ok {
		t.Fatalf("expected lookup of unknown name to fail")
	}
}

func TestRenameEntrySymbol(t *testing.T) {
	img, err := Load(buildMinimalImage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img.Symbols.Add(Symbol{Name: "sub_02000000", Address: img.EntryPoint, Type: SymbolFunction})

	img.RenameEntrySymbol()

	sym, ok := img.Symbols.Get(img.EntryPoint)
	if !ok || sym.Name != "_start" {
		t.Fatalf("expected entry point symbol renamed to _start, got %v", sym)
	}
}

func TestRenameEntrySymbolNoop_WhenNoSymbolAtEntry(t *testing.T) {
	img, err := Load(buildMinimalImage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img.RenameEntrySymbol() // no symbol at EntryPoint; must not panic or fabricate one
	if _, ok := img.Symbols.Get(img.EntryPoint); ok {
		t.Fatalf("expected no symbol to have been created")
	}
}
