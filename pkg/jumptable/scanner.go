package jumptable

import "encoding/binary"

// This recognizer is grounded line-for-line on RebrewAnalyse's own
// SearchMask/ScanTable (original_source/RebrewAnalyse/main.cpp): the same
// word-by-word opcode-sequence matcher against the four documented dispatch
// shapes, and the same backward scan for the bgt/ble guard and its cmplwi.
// The manually authored TOML sidecar (internal/config's switch-table
// loader) exists alongside it as an override for sites this scan can't
// fully resolve, not as a replacement for it.

func primaryOp(word uint32) uint32   { return (word >> 26) & 0x3F }
func extOp(word uint32) uint32       { return (word >> 1) & 0x3FF }
func rd(word uint32) uint32          { return (word >> 21) & 0x1F }
func ra(word uint32) uint32          { return (word >> 16) & 0x1F }
func rb(word uint32) uint32          { return (word >> 11) & 0x1F }
func simm(word uint32) int32         { return int32(int16(word & 0xFFFF)) }
func bo(word uint32) uint32          { return (word >> 21) & 0x1F }
func bi(word uint32) uint32          { return (word >> 16) & 0x1F }
func bd(word uint32) int32           { return (int32(word) << 16) >> 16 }

func isLis(word uint32) bool    { return primaryOp(word) == 15 && ra(word) == 0 }
func isAddi(word uint32) bool   { return primaryOp(word) == 14 }
func isLwzx(word uint32) bool   { return word&0xFC0007FE == 0x7C00002E }
func isLbzx(word uint32) bool   { return word&0xFC0007FE == 0x7C0000AE }
func isLhzx(word uint32) bool   { return word&0xFC0007FE == 0x7C00022E }
func isAdd(word uint32) bool    { return word&0xFC0007FE == 0x7C000214 }
func isMtctr(word uint32) bool  { return word&0xFC1FFFFF == 0x7C0903A6 }
func isBctr(word uint32) bool   { return word == 0x4E800420 }
func isBgt(word uint32) bool    { return primaryOp(word) == 16 && bo(word) == 12 && bi(word)&0x3 == 1 }
func isBle(word uint32) bool    { return primaryOp(word) == 16 && bo(word) == 4 && bi(word)&0x3 == 1 }
func isCmplwi(word uint32) bool { return word&0xFC400000 == 0x28000000 }

// isRlwinmShift reports whether word is the slwi pseudo-op (rlwinm rA,rS,n,0,31-n)
// with shift amount n.
func isRlwinmShift(word uint32, n uint32) bool {
	if primaryOp(word) != 21 {
		return false
	}
	sh := (word >> 11) & 0x1F
	mb := (word >> 6) & 0x1F
	me := (word >> 1) & 0x1F
	return sh == n && mb == 0 && me == 31-n
}

func ptr32(hi, lo uint32) uint32 { return (hi << 16) + uint32(int32(int16(lo))) }

// matchResult carries everything a pattern matcher reconstructs from the
// instruction sequence: the controlling register, the table's own address
// (tableAddr), the separate base pointer added to each raw table entry for
// the relative variants (addBase — unused by Absolute, whose entries are
// already complete addresses), the Computed variant's left-shift amount,
// and the element width in bytes.
type matchResult struct {
	reg      int
	tableAddr uint32
	addBase   uint32
	shift     uint32
	width     uint32
}

// pattern is one six-/seven-/eight-word dispatch shape matcher.
type pattern struct {
	variant Variant
	match   func(words []uint32) (matchResult, bool)
}

var patterns = [...]pattern{
	{Absolute, matchAbsolute},
	{Computed, matchComputed},
	{ByteOffset, matchByteOffset},
	{ShortOffset, matchShortOffset},
}

// matchAbsolute: lis, addi, rlwinm(slwi #2), lwzx, mtctr, bctr
func matchAbsolute(w []uint32) (matchResult, bool) {
	if len(w) < 6 {
		return matchResult{}, false
	}
	if !isLis(w[0]) || !isAddi(w[1]) || !isRlwinmShift(w[2], 2) || !isLwzx(w[3]) || !isMtctr(w[4]) || !isBctr(w[5]) {
		return matchResult{}, false
	}
	tableAddr := ptr32(w[0]&0xFFFF, uint32(uint16(simm(w[1]))))
	return matchResult{reg: int(ra(w[3])), tableAddr: tableAddr, width: 4}, true
}

// matchComputed: lis, addi, lbzx, rlwinm(slwi), lis, addi, add, mtctr
func matchComputed(w []uint32) (matchResult, bool) {
	if len(w) < 8 {
		return matchResult{}, false
	}
	if !isLis(w[0]) || !isAddi(w[1]) || !isLbzx(w[2]) || primaryOp(w[3]) != 21 ||
		!isLis(w[4]) || !isAddi(w[5]) || !isAdd(w[6]) || !isMtctr(w[7]) {
		return matchResult{}, false
	}
	shift := (w[3] >> 11) & 0x1F
	tableAddr := ptr32(w[0]&0xFFFF, uint32(uint16(simm(w[1]))))
	addBase := ptr32(w[4]&0xFFFF, uint32(uint16(simm(w[5]))))
	return matchResult{reg: int(ra(w[2])), tableAddr: tableAddr, addBase: addBase, shift: shift, width: 1}, true
}

// matchByteOffset: lis, addi, lbzx, lis, addi, add, mtctr
func matchByteOffset(w []uint32) (matchResult, bool) {
	if len(w) < 7 {
		return matchResult{}, false
	}
	if !isLis(w[0]) || !isAddi(w[1]) || !isLbzx(w[2]) || !isLis(w[3]) || !isAddi(w[4]) || !isAdd(w[5]) || !isMtctr(w[6]) {
		return matchResult{}, false
	}
	tableAddr := ptr32(w[0]&0xFFFF, uint32(uint16(simm(w[1]))))
	addBase := ptr32(w[3]&0xFFFF, uint32(uint16(simm(w[4]))))
	return matchResult{reg: int(ra(w[2])), tableAddr: tableAddr, addBase: addBase, width: 1}, true
}

// matchShortOffset: lis, addi, rlwinm(slwi #1), lhzx, lis, addi, add, mtctr
func matchShortOffset(w []uint32) (matchResult, bool) {
	if len(w) < 8 {
		return matchResult{}, false
	}
	if !isLis(w[0]) || !isAddi(w[1]) || !isRlwinmShift(w[2], 1) || !isLhzx(w[3]) ||
		!isLis(w[4]) || !isAddi(w[5]) || !isAdd(w[6]) || !isMtctr(w[7]) {
		return matchResult{}, false
	}
	tableAddr := ptr32(w[0]&0xFFFF, uint32(uint16(simm(w[1]))))
	addBase := ptr32(w[4]&0xFFFF, uint32(uint16(simm(w[5]))))
	return matchResult{reg: int(ra(w[3])), tableAddr: tableAddr, addBase: addBase, width: 2}, true
}

const backScanLimit = 32

// Scan walks code (a section's decompressed bytes) looking for any of the
// four recognized dispatch shapes, returning one descriptor per match it
// can fully resolve — default label, case count, and table address. Sites
// it can match the instruction shape for but can't resolve (missing guard,
// unreadable table bytes) are silently dropped, matching the scanner's
// documented failure mode of leaving such bctr sites unresolved.
func Scan(code []byte, base uint32) []Table {
	if len(code)%4 != 0 {
		code = code[:len(code)-len(code)%4]
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(code[i*4 : i*4+4])
	}

	var tables []Table
	for i := 0; i < len(words); i++ {
		for _, p := range patterns {
			end := i + 8
			if end > len(words) {
				end = len(words)
			}
			m, ok := p.match(words[i:end])
			if !ok {
				continue
			}

			defaultLabel, count, found := backScanGuard(words, i, uint32(m.reg), base)
			if !found {
				continue
			}

			labels := readLabels(code, base, m, p.variant, count)
			if labels == nil {
				continue
			}

			tables = append(tables, Table{
				Base:    base + uint32(i)*4,
				Variant: p.variant,
				Reg:     m.reg,
				Default: defaultLabel,
				Labels:  labels,
			})
		}
	}
	return tables
}

// backScanGuard walks backward up to 32 instructions from the dispatch
// sequence's first word looking for the bgt/ble that guards it (its taken
// target becomes the default label), then keeps walking backward from
// there for a cmplwi against the same register anywhere earlier in the
// window — not necessarily the instruction directly before the guard, since
// a compiler-scheduled instruction can sit between them. The cmplwi's
// immediate plus one is the case count. defaultLabel is returned as an
// absolute address (base added in), matching Table.Base.
func backScanGuard(words []uint32, siteIdx int, reg uint32, base uint32) (defaultLabel uint32, count uint32, ok bool) {
	limit := siteIdx - backScanLimit
	if limit < 0 {
		limit = 0
	}

	foundGuard := false
	var target uint32

	for i := siteIdx - 1; i >= limit; i-- {
		w := words[i]

		if !foundGuard {
			if isBgt(w) || isBle(w) {
				foundGuard = true
				target = base + uint32(int32(i)*4) + uint32(bd(w))
			}
			continue
		}

		if isCmplwi(w) && ra(w) == reg {
			return target, uint32(w&0xFFFF) + 1, true
		}
	}

	return 0, 0, false
}

// readLabels reads count entries from the table located at m.tableAddr
// within code (addressed from base), applying the variant's element
// formula. For the three relative variants, m.addBase — reconstructed from
// the dispatch sequence's second lis/addi pair, not the section's load
// base — is what each raw entry is added to.
func readLabels(code []byte, base uint32, m matchResult, variant Variant, count uint32) []uint32 {
	if m.tableAddr < base {
		return nil
	}
	startOff := int64(m.tableAddr) - int64(base)
	endOff := startOff + int64(count)*int64(m.width)
	if startOff < 0 || endOff > int64(len(code)) {
		return nil
	}

	labels := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		off := startOff + int64(i)*int64(m.width)
		switch variant {
		case Absolute:
			labels[i] = binary.BigEndian.Uint32(code[off : off+4])
		case Computed:
			raw := uint32(code[off])
			labels[i] = m.addBase + (raw << m.shift)
		case ByteOffset:
			labels[i] = m.addBase + uint32(code[off])
		case ShortOffset:
			labels[i] = m.addBase + uint32(binary.BigEndian.Uint16(code[off:off+2]))
		}
	}
	return labels
}
