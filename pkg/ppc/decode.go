package ppc

// Instruction is one decoded PowerPC word: its raw encoding, the matched
// Opcode descriptor (nil when no table entry matched), and its operands
// in a fixed four-slot layout mirroring the original disassembler's
// ppc_insn::operands. The exact slot meaning depends on Opcode.Kind.
type Instruction struct {
	Raw      uint32
	Address  uint32
	Opcode   *Opcode
	Operands [4]int32
}

// Valid reports whether the instruction word matched a table entry.
func (i Instruction) Valid() bool { return i.Opcode != nil }

func (i Instruction) ID() InstID {
	if i.Opcode == nil {
		return InstInvalid
	}
	return i.Opcode.ID
}

// lookup scans the static table for the first entry whose mask/opcode
// pattern matches instr, mirroring GetOpcode's linear scan.
func lookup(instr uint32) *Opcode {
	for idx := range opcodeTable {
		op := &opcodeTable[idx]
		if instr&op.Mask == op.Opcode {
			return op
		}
	}
	return nil
}

// Decode decodes the big-endian-already-swapped 32-bit instruction word
// word located at address addr. It returns the zero Instruction with a nil
// Opcode when no table entry matches.
func Decode(word uint32, addr uint32) Instruction {
	insn := Instruction{Raw: word, Address: addr}
	op := lookup(word)
	insn.Opcode = op
	if op == nil {
		return insn
	}

	switch op.Kind {
	case OperandBranch:
		target := signExtend(extractOperand(word, 6, 29)<<2, 26)
		insn.Operands[0] = target

	case OperandCondBranch:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))  // BO
		insn.Operands[1] = int32(extractOperand(word, 11, 15)) // BI
		insn.Operands[2] = signExtend(extractOperand(word, 16, 29)<<2, 16)

	case OperandMemImm:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))  // rD/rS
		insn.Operands[1] = int32(extractOperand(word, 11, 15)) // rA
		insn.Operands[2] = signExtend(extractOperand(word, 16, 31), 16)

	case OperandRotate:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))  // rS
		insn.Operands[1] = int32(extractOperand(word, 11, 15)) // rA
		insn.Operands[2] = int32(extractOperand(word, 16, 20)) // SH or rB
		mb := extractOperand(word, 21, 25)
		me := extractOperand(word, 26, 30)
		insn.Operands[3] = int32(mb<<8 | me)

	case OperandPairedSingle:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))  // rD/rS
		insn.Operands[1] = int32(extractOperand(word, 11, 15)) // rA
		insn.Operands[2] = signExtend(extractOperand(word, 20, 31), 12)
		insn.Operands[3] = int32(extractOperand(word, 17, 19)) // i (quantization index)

	case OperandPairedSingleIndexed:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))  // rD/rS
		insn.Operands[1] = int32(extractOperand(word, 11, 15)) // rA
		insn.Operands[2] = int32(extractOperand(word, 16, 20)) // rB
		insn.Operands[3] = int32(extractOperand(word, 22, 24)) // i (quantization index)

	case OperandSPR:
		insn.Operands[0] = int32(extractOperand(word, 6, 10))
		insn.Operands[1] = int32(extractOperand(word, 11, 20))

	case OperandNoOperand:
		// no operands to extract

	default: // OperandTriReg, OperandFPTriReg and anything else
		insn.Operands[0] = int32(extractOperand(word, 6, 10))   // rD
		insn.Operands[1] = int32(extractOperand(word, 11, 15))  // rA
		insn.Operands[2] = int32(extractOperand(word, 16, 20))  // rB
		insn.Operands[3] = int32(extractOperand(word, 21, 25))  // rC
	}

	return insn
}

// BranchTarget returns the absolute target address of a branch instruction,
// or 0 if insn is not a branch. BA-form targets are absolute; all others
// are relative to the instruction's own address (for bc, its BD
// displacement). bclr/bcctr branch through LR/CTR and return 0.
func BranchTarget(insn Instruction) uint32 {
	if !IsBranch(insn) {
		return 0
	}
	switch insn.Opcode.ID {
	case InstBa, InstBla:
		return uint32(insn.Operands[0])
	case InstBc:
		return insn.Address + uint32(insn.Operands[2])
	case InstBclr, InstBcctr:
		return 0
	}
	return insn.Address + uint32(insn.Operands[0])
}

func IsBranch(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstB, InstBa, InstBl, InstBla, InstBc, InstBclr, InstBcctr:
		return true
	}
	return false
}

func IsConditionalBranch(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstBc, InstBclr, InstBcctr:
		return true
	}
	return false
}

func IsUnconditionalBranch(insn Instruction) bool {
	return IsBranch(insn) && !IsConditionalBranch(insn)
}

func IsLoad(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstLwz, InstLwzu, InstLwzx, InstLwzux, InstLwarx, InstLwbrx,
		InstLbz, InstLbzu, InstLbzx, InstLbzux,
		InstLhz, InstLhzu, InstLhzx, InstLhzux, InstLha, InstLhau, InstLhax, InstLhaux, InstLhbrx,
		InstLfs, InstLfsu, InstLfsx, InstLfsux, InstLfd, InstLfdu, InstLfdx, InstLfdux,
		InstLmw, InstPsqL, InstPsqLu, InstPsqLx, InstPsqLux:
		return true
	}
	return false
}

func IsStore(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstStw, InstStwu, InstStwx, InstStwux, InstStwcx, InstStwbrx,
		InstStb, InstStbu, InstStbx, InstStbux,
		InstSth, InstSthu, InstSthx, InstSthux, InstSthbrx,
		InstStfs, InstStfsu, InstStfsx, InstStfsux, InstStfd, InstStfdu, InstStfdx, InstStfdux, InstStfiwx,
		InstStmw, InstPsqSt, InstPsqStu, InstPsqStx, InstPsqStux:
		return true
	}
	return false
}

func IsFloatingPoint(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstFadd, InstFadds, InstFsub, InstFsubs, InstFmul, InstFmuls,
		InstFdiv, InstFdivs, InstFmadd, InstFmadds, InstFmsub, InstFmsubs,
		InstFnmadd, InstFnmadds, InstFnmsub, InstFnmsubs, InstFabs, InstFnabs,
		InstFneg, InstFmr, InstFsel, InstFsqrt, InstFsqrts, InstFres, InstFrsqrte,
		InstFrsp, InstFctiw, InstFctiwz, InstFcmpo, InstFcmpu,
		InstLfs, InstLfsu, InstLfsx, InstLfsux, InstLfd, InstLfdu, InstLfdx, InstLfdux,
		InstStfs, InstStfsu, InstStfsx, InstStfsux, InstStfd, InstStfdu, InstStfdx, InstStfdux, InstStfiwx:
		return true
	}
	return false
}

func IsPairedSingle(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstPsAbs, InstPsAdd, InstPsCmpo0, InstPsCmpo1, InstPsCmpu0, InstPsCmpu1,
		InstPsDiv, InstPsMadd, InstPsMadds0, InstPsMadds1,
		InstPsMerge00, InstPsMerge01, InstPsMerge10, InstPsMerge11,
		InstPsMr, InstPsMsub, InstPsMul, InstPsMuls0, InstPsMuls1,
		InstPsNabs, InstPsNeg, InstPsNmadd, InstPsNmsub, InstPsRes, InstPsRsqrte,
		InstPsSel, InstPsSub, InstPsSum0, InstPsSum1,
		InstPsqL, InstPsqLu, InstPsqLx, InstPsqLux, InstPsqSt, InstPsqStu, InstPsqStx, InstPsqStux:
		return true
	}
	return false
}

func IsPrivileged(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	switch insn.Opcode.ID {
	case InstMfmsr, InstMtmsr, InstRfi, InstSc:
		return true
	}
	return false
}

// RequiresSpecialHandling flags instructions the Translator must route
// through non-generic lowering: paired-single ops (FP-mode tracking),
// privileged ops, and the two trap/syscall forms.
func RequiresSpecialHandling(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	return IsPairedSingle(insn) || IsPrivileged(insn) ||
		insn.Opcode.ID == InstSc || insn.Opcode.ID == InstRfi
}

// IsUnconditionalCTRBranch reports whether insn is bcctr/bclr with BO bit 4
// set (the "always branch" pattern, bit index 0x10 in the BO field) — the
// pattern the Function Analyzer treats as a tail-call-like terminator.
func IsUnconditionalCTRBranch(insn Instruction) bool {
	if !insn.Valid() {
		return false
	}
	if insn.Opcode.ID != InstBcctr && insn.Opcode.ID != InstBclr {
		return false
	}
	return uint32(insn.Operands[0])&0x10 != 0
}
