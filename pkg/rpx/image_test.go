package rpx

import "testing"

// buildMinimalImage assembles a valid minimal RPX-shaped ELF: a null section,
// a small executable .text, and a .shstrtab naming them both. Good enough to
// exercise Load's header validation and section/symbol wiring without a real
// RPX fixture on disk.
func buildMinimalImage() []byte {
	shstrtab := []byte("\x00.text\x00.shstrtab\x00")
	text := []byte{0x7C, 0x03, 0x1A, 0x14, 0x4E, 0x80, 0x00, 0x20} // add r0,r3,r3; blr

	const (
		headerOff   = 0
		shOff       = elfHeaderSize
		shCount     = 3
		shTableSize = shCount * sectionHeaderSize
	)
	textOff := shOff + shTableSize
	shstrtabOff := textOff + len(text)

	buf := make([]byte, shstrtabOff+len(shstrtab))

	hdr := buf[headerOff : headerOff+elfHeaderSize]
	hdr[0], hdr[1], hdr[2], hdr[3] = 0x7F, 'E', 'L', 'F'
	hdr[4] = 1 // ELFCLASS32
	hdr[5] = 2 // ELFDATA2MSB
	byteOrder.PutUint16(hdr[16:18], 2)     // e_type
	byteOrder.PutUint16(hdr[18:20], emPPC) // e_machine
	byteOrder.PutUint32(hdr[20:24], 1)     // e_version
	byteOrder.PutUint32(hdr[24:28], 0x02000000)
	byteOrder.PutUint32(hdr[28:32], 0) // e_phoff
	byteOrder.PutUint32(hdr[32:36], uint32(shOff))
	byteOrder.PutUint16(hdr[40:42], elfHeaderSize)
	byteOrder.PutUint16(hdr[42:44], programHeaderSize)
	byteOrder.PutUint16(hdr[44:46], 0) // e_phnum
	byteOrder.PutUint16(hdr[46:48], sectionHeaderSize)
	byteOrder.PutUint16(hdr[48:50], shCount)
	byteOrder.PutUint16(hdr[50:52], 2) // e_shstrndx

	writeSH := func(i int, name, typ, flags, addr, offset, size uint32) {
		off := shOff + i*sectionHeaderSize
		sh := buf[off : off+sectionHeaderSize]
		byteOrder.PutUint32(sh[0:4], name)
		byteOrder.PutUint32(sh[4:8], typ)
		byteOrder.PutUint32(sh[8:12], flags)
		byteOrder.PutUint32(sh[12:16], addr)
		byteOrder.PutUint32(sh[16:20], offset)
		byteOrder.PutUint32(sh[20:24], size)
	}
	writeSH(0, 0, ShtNull, 0, 0, 0, 0)
	writeSH(1, 1, ShtProgbits, ShfAlloc|ShfExecinstr, 0x02000000, uint32(textOff), uint32(len(text)))
	writeSH(2, 7, ShtStrtab, 0, 0, uint32(shstrtabOff), uint32(len(shstrtab)))

	copy(buf[textOff:], text)
	copy(buf[shstrtabOff:], shstrtab)

	return buf
}

func TestLoadParsesMinimalImage(t *testing.T) {
	img, err := Load(buildMinimalImage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.TextBase != 0x02000000 || img.TextSize != 8 {
		t.Fatalf("unexpected .text range: base=0x%X size=%d", img.TextBase, img.TextSize)
	}
	sec := img.Section(".text")
	if sec == nil || !sec.IsCode() {
		t.Fatalf("expected .text to be found and classified as code")
	}
	if code := img.Find(0x02000000); len(code) < 8 {
		t.Fatalf("expected Find to return the section's bytes")
	}
	if len(img.CodeSections()) != 1 {
		t.Fatalf("expected exactly one code section")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildMinimalImage()
	data[0] = 0x00
	if _, err := Load(data); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestLoadRejectsWrongClass(t *testing.T) {
	data := buildMinimalImage()
	data[4] = 2 // ELFCLASS64
	if _, err := Load(data); err != ErrNot32Bit {
		t.Fatalf("expected ErrNot32Bit, got %v", err)
	}
}

func TestLoadRejectsWrongEndian(t *testing.T) {
	data := buildMinimalImage()
	data[5] = 1 // ELFDATA2LSB
	if _, err := Load(data); err != ErrNotBigEndian {
		t.Fatalf("expected ErrNotBigEndian, got %v", err)
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	data := buildMinimalImage()
	byteOrder.PutUint16(data[18:20], 3) // EM_386
	if _, err := Load(data); err != ErrWrongMachine {
		t.Fatalf("expected ErrWrongMachine, got %v", err)
	}
}

func TestLoadRejectsTruncatedHeader(t *testing.T) {
	if _, err := Load([]byte{0x7F, 'E', 'L', 'F'}); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}
