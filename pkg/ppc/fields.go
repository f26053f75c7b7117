package ppc

// Bit-field extraction over a big-endian PowerPC instruction word, bit 0
// being the most-significant bit as in IBM's PowerPC numbering.

func opcodeField(instr uint32) uint32 { return (instr >> 26) & 0x3F }
func extOpField(instr uint32) uint32  { return (instr >> 1) & 0x3FF }

func isLink(instr uint32) bool { return instr&1 != 0 }

// bo returns the branch-options field (bits 6-10) of a conditional branch.
func bo(instr uint32) uint32 { return (instr >> 21) & 0x1F }

// bi mirrors PPC_BI from wiiu_ppc.h: despite the name this extracts the
// 24-bit signed displacement used by unconditional branch instructions.
func bi(instr uint32) int32 { return (int32(instr) << 6) >> 6 }

// bd mirrors PPC_BD: the 14-bit signed displacement of a conditional branch.
func bd(instr uint32) int32 { return (int32(instr) << 16) >> 16 }

// PrimaryOpcode returns the instruction's 6-bit primary opcode field,
// mirroring PPC_OP. Valid for any instruction word regardless of whether
// it matches a table entry.
func PrimaryOpcode(instr uint32) uint32 { return opcodeField(instr) }

// ExtendedOpcode returns the instruction's 10-bit extended opcode field,
// mirroring PPC_XOP.
func ExtendedOpcode(instr uint32) uint32 { return extOpField(instr) }

// IsLinkBit reports the LK bit (bit 31), mirroring PPC_BL.
func IsLinkBit(instr uint32) bool { return isLink(instr) }

// BranchOptions mirrors PPC_BO.
func BranchOptions(instr uint32) uint32 { return bo(instr) }

// UnconditionalBranchDisplacement mirrors PPC_BI: despite the name it is
// the 24-bit signed displacement field used by b/bl/ba/bla.
func UnconditionalBranchDisplacement(instr uint32) int32 { return bi(instr) }

// ConditionalBranchDisplacement mirrors PPC_BD: the 14-bit signed
// displacement field used by bc/bcl/bca/bcla.
func ConditionalBranchDisplacement(instr uint32) int32 { return bd(instr) }

// Primary opcode values the block analyzer switches on directly, mirroring
// wiiu_ppc.h's anonymous enum.
const (
	OpB  = 18
	OpBC = 16
	OpCTR = 19
)

func extractOperand(instr uint32, start, end int) uint32 {
	mask := uint32(1)<<(end-start+1) - 1
	return (instr >> (31 - end)) & mask
}

func signExtend(value uint32, bits int) int32 {
	signBit := uint32(1) << (bits - 1)
	return int32(value^signBit) - int32(signBit)
}
