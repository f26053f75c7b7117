package jumptable

import (
	"encoding/binary"
	"testing"
)

// The encode* helpers below are the exact inverse of scanner.go's own
// primaryOp/rd/ra/rb/bo/bi/bd field extractors, so a test built from them
// stays in lockstep with however those extractors are defined rather than
// re-deriving the ISA's bit layout independently.

func encodeLis(rd, imm uint32) uint32      { return 15<<26 | rd<<21 | 0<<16 | imm&0xFFFF }
func encodeAddi(rd, ra, imm uint32) uint32 { return 14<<26 | rd<<21 | ra<<16 | imm&0xFFFF }
func encodeRlwinmShift(rs, ra, n uint32) uint32 {
	return 21<<26 | rs<<21 | ra<<16 | n<<11 | 0<<6 | (31-n)<<1
}
func encodeLwzx(rd, ra, rb uint32) uint32 { return 0x7C00002E | rd<<21 | ra<<16 | rb<<11 }
func encodeMtctr(rs uint32) uint32        { return 0x7C0903A6 | rs<<21 }
func encodeCmplwi(ra, imm uint32) uint32  { return 0x28000000 | ra<<16 | imm&0xFFFF }
func encodeBgt(bi, disp uint32) uint32    { return 16<<26 | 12<<21 | bi<<16 | disp&0xFFFF }

const encodedBctr = 0x4E800420

func wordsToBytes(words []uint32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], w)
	}
	return buf
}

func TestScanRecognizesAbsoluteDispatch(t *testing.T) {
	const base = uint32(0x1000)
	words := []uint32{
		encodeCmplwi(3, 4),           // idx0: cmplwi r3, 4  -> 5 cases
		encodeBgt(1, 16),             // idx1: bgt default (+16)
		encodeLis(4, 0),              // idx2: lis r4, 0
		encodeAddi(4, 4, 0x1020),     // idx3: addi r4, r4, table@0x1020
		encodeRlwinmShift(3, 4, 2),   // idx4: slwi r4, r3, 2
		encodeLwzx(5, 3, 4),          // idx5: lwzx r5, r3, r4
		encodeMtctr(5),               // idx6: mtctr r5
		encodedBctr,                  // idx7: bctr
		0x2000, 0x2010, 0x2020, 0x2030, 0x2040, // idx8-12: the table itself
	}
	code := wordsToBytes(words)

	tables := Scan(code, base)
	if len(tables) != 1 {
		t.Fatalf("expected exactly one recognized table, got %d", len(tables))
	}

	tbl := tables[0]
	if tbl.Variant != Absolute {
		t.Fatalf("expected Absolute variant, got %v", tbl.Variant)
	}
	if tbl.Base != base+2*4 {
		t.Fatalf("expected table site at the lis instruction, got 0x%X", tbl.Base)
	}
	if tbl.Reg != 3 {
		t.Fatalf("expected the guarded register to be r3, got r%d", tbl.Reg)
	}
	if tbl.Default != base+1*4+16 {
		t.Fatalf("expected default label 0x%X, got 0x%X", base+1*4+16, tbl.Default)
	}
	want := []uint32{0x2000, 0x2010, 0x2020, 0x2030, 0x2040}
	if len(tbl.Labels) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(tbl.Labels))
	}
	for i, w := range want {
		if tbl.Labels[i] != w {
			t.Fatalf("label %d: expected 0x%X, got 0x%X", i, w, tbl.Labels[i])
		}
	}
}

// TestScanRecognizesGuardWithScheduledInstructionBetween guards against
// requiring the cmplwi to sit directly before the bgt/ble guard: a
// compiler-scheduled instruction between them is realistic and the backward
// scan must keep looking past it for the matching cmplwi.
func TestScanRecognizesGuardWithScheduledInstructionBetween(t *testing.T) {
	const base = uint32(0x1000)
	words := []uint32{
		encodeCmplwi(3, 4),           // idx0: cmplwi r3, 4  -> 5 cases
		0x60000000,                   // idx1: ori r0, r0, 0 (scheduled filler)
		encodeBgt(1, 16),             // idx2: bgt default (+16)
		encodeLis(4, 0),              // idx3: lis r4, 0
		encodeAddi(4, 4, 0x1024),     // idx4: addi r4, r4, table@0x1024
		encodeRlwinmShift(3, 4, 2),   // idx5: slwi r4, r3, 2
		encodeLwzx(5, 3, 4),          // idx6: lwzx r5, r3, r4
		encodeMtctr(5),               // idx7: mtctr r5
		encodedBctr,                  // idx8: bctr
		0x2000, 0x2010, 0x2020, 0x2030, 0x2040, // idx9-13: the table itself
	}
	code := wordsToBytes(words)

	tables := Scan(code, base)
	if len(tables) != 1 {
		t.Fatalf("expected exactly one recognized table, got %d", len(tables))
	}

	tbl := tables[0]
	if tbl.Reg != 3 {
		t.Fatalf("expected the guarded register to be r3, got r%d", tbl.Reg)
	}
	if tbl.Default != base+2*4+16 {
		t.Fatalf("expected default label 0x%X, got 0x%X", base+2*4+16, tbl.Default)
	}
	want := []uint32{0x2000, 0x2010, 0x2020, 0x2030, 0x2040}
	if len(tbl.Labels) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(tbl.Labels))
	}
	for i, w := range want {
		if tbl.Labels[i] != w {
			t.Fatalf("label %d: expected 0x%X, got 0x%X", i, w, tbl.Labels[i])
		}
	}
}

func TestScanIgnoresPlainCode(t *testing.T) {
	words := []uint32{
		0x7C031A14, // add r0, r3, r3
		0x4E800020, // blr
	}
	if tables := Scan(wordsToBytes(words), 0x1000); len(tables) != 0 {
		t.Fatalf("expected no tables recognized in non-dispatch code, got %d", len(tables))
	}
}

func TestTableContains(t *testing.T) {
	tbl := Table{Base: 0x1000}
	if !tbl.Contains(0x1000, 0x20) || !tbl.Contains(0x101F, 0x20) {
		t.Fatalf("expected addresses within [base, base+length) to be contained")
	}
	if tbl.Contains(0x1020, 0x20) {
		t.Fatalf("expected the address right at the end to be excluded")
	}
}

func TestVariantString(t *testing.T) {
	cases := map[Variant]string{
		Absolute:     "absolute",
		Computed:     "computed",
		ByteOffset:   "byte_offset",
		ShortOffset:  "short_offset",
		Variant(999): "unknown",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Fatalf("Variant(%d).String() = %q, want %q", v, got, want)
		}
	}
}
