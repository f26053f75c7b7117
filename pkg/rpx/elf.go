// Package rpx implements the RPX image loader: parsing the Wii U's
// compressed, big-endian ELF variant into sections, symbols and the raw
// bytes the rest of the pipeline walks.
package rpx

import "encoding/binary"

// ElfHeader mirrors RPX_ElfHeader from the original toolchain: a standard
// 32-bit big-endian ELF header, laid out field-for-field so binary.Read can
// decode it directly off the file.
type ElfHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	PhOff     uint32
	ShOff     uint32
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

const elfHeaderSize = 52

// SectionHeader mirrors RPX_SectionHeader.
type SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32
	EntSize   uint32
}

const sectionHeaderSize = 40

// ProgramHeader mirrors RPX_ProgramHeader.
type ProgramHeader struct {
	Type   uint32
	Offset uint32
	VAddr  uint32
	PAddr  uint32
	FileSz uint32
	MemSz  uint32
	Flags  uint32
	Align  uint32
}

const programHeaderSize = 32

// SymbolEntry mirrors RPX_SymbolEntry.
type SymbolEntry struct {
	NameOff uint32
	Value   uint32
	Size    uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
}

const symbolEntrySize = 16

var byteOrder = binary.BigEndian

func decodeElfHeader(data []byte) (ElfHeader, bool) {
	var hdr ElfHeader
	if len(data) < elfHeaderSize {
		return hdr, false
	}
	copy(hdr.Ident[:], data[0:16])
	hdr.Type = byteOrder.Uint16(data[16:18])
	hdr.Machine = byteOrder.Uint16(data[18:20])
	hdr.Version = byteOrder.Uint32(data[20:24])
	hdr.Entry = byteOrder.Uint32(data[24:28])
	hdr.PhOff = byteOrder.Uint32(data[28:32])
	hdr.ShOff = byteOrder.Uint32(data[32:36])
	hdr.Flags = byteOrder.Uint32(data[36:40])
	hdr.EhSize = byteOrder.Uint16(data[40:42])
	hdr.PhEntSize = byteOrder.Uint16(data[42:44])
	hdr.PhNum = byteOrder.Uint16(data[44:46])
	hdr.ShEntSize = byteOrder.Uint16(data[46:48])
	hdr.ShNum = byteOrder.Uint16(data[48:50])
	hdr.ShStrNdx = byteOrder.Uint16(data[50:52])
	return hdr, true
}

func decodeSectionHeader(data []byte) SectionHeader {
	return SectionHeader{
		Name:      byteOrder.Uint32(data[0:4]),
		Type:      byteOrder.Uint32(data[4:8]),
		Flags:     byteOrder.Uint32(data[8:12]),
		Addr:      byteOrder.Uint32(data[12:16]),
		Offset:    byteOrder.Uint32(data[16:20]),
		Size:      byteOrder.Uint32(data[20:24]),
		Link:      byteOrder.Uint32(data[24:28]),
		Info:      byteOrder.Uint32(data[28:32]),
		AddrAlign: byteOrder.Uint32(data[32:36]),
		EntSize:   byteOrder.Uint32(data[36:40]),
	}
}

func decodeProgramHeader(data []byte) ProgramHeader {
	return ProgramHeader{
		Type:   byteOrder.Uint32(data[0:4]),
		Offset: byteOrder.Uint32(data[4:8]),
		VAddr:  byteOrder.Uint32(data[8:12]),
		PAddr:  byteOrder.Uint32(data[12:16]),
		FileSz: byteOrder.Uint32(data[16:20]),
		MemSz:  byteOrder.Uint32(data[20:24]),
		Flags:  byteOrder.Uint32(data[24:28]),
		Align:  byteOrder.Uint32(data[28:32]),
	}
}

func decodeSymbolEntry(data []byte) SymbolEntry {
	return SymbolEntry{
		NameOff: byteOrder.Uint32(data[0:4]),
		Value:   byteOrder.Uint32(data[4:8]),
		Size:    byteOrder.Uint32(data[8:12]),
		Info:    data[12],
		Other:   data[13],
		Shndx:   byteOrder.Uint16(data[14:16]),
	}
}
