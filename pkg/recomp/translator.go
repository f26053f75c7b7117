package recomp

import (
	"fmt"

	"github.com/ApfelTeeSaft/RebrewU/internal/config"
	"github.com/ApfelTeeSaft/RebrewU/pkg/ppc"
)

// Translator lowers one decoded instruction at a time into the embedded
// runtime's C++ dialect (PPCContext field accesses, PPC_LOAD_*/PPC_STORE_*
// macros, PPC_CALL_INDIRECT_FUNC). Unlike the original's five-case stub,
// it covers the bulk of the Gekko/Broadway integer, floating-point, and
// control-register opcode space; Translate itself routes paired singles to
// pairedsingle.go's emitters.
type Translator struct {
	cfg *config.Config
}

func NewTranslator(cfg *config.Config) *Translator {
	return &Translator{cfg: cfg}
}

// LabelFunc resolves an absolute branch target to the goto label name used
// within the current function, or ("", false) if the target lies outside
// it and should instead be lowered as a call/tail-call.
type LabelFunc func(target uint32) (label string, inFunction bool)

// r/cr/xer/reserved formatting helpers share registers.go's local-variable
// promotion bookkeeping by routing through its naming functions; f always
// names the context field.
func (t *Translator) r(i int, locals *LocalVariables) string { return RegisterName(t.cfg, i, 'r', locals) }
func (t *Translator) f(i int) string                         { return FPRegisterName(i) }
func (t *Translator) cr(field int, locals *LocalVariables) string {
	return CRFieldName(t.cfg, field, locals)
}
func (t *Translator) xer(locals *LocalVariables) string      { return XERName(t.cfg, locals) }
func (t *Translator) reserved(locals *LocalVariables) string { return ReservedName(t.cfg, locals) }

// Translate lowers a single non-branch instruction to one or more
// statement lines. It returns ok=false for anything it doesn't recognize,
// which the driver treats as either a hard failure or a NOP depending on
// TreatUnknownInstructionsAsNop.
func (t *Translator) Translate(insn ppc.Instruction, locals *LocalVariables) (string, bool) {
	if ppc.IsPairedSingle(insn) {
		if !t.cfg.GeneratePairedSingleSupport {
			return "", false
		}
		switch insn.ID() {
		case ppc.InstPsqL, ppc.InstPsqLu, ppc.InstPsqLx, ppc.InstPsqLux:
			return t.emitQuantizedLoad(insn, locals), true
		case ppc.InstPsqSt, ppc.InstPsqStu, ppc.InstPsqStx, ppc.InstPsqStux:
			return t.emitQuantizedStore(insn, locals), true
		default:
			return t.emitPairedSingle(insn, locals)
		}
	}

	// mfmsr/mtmsr model a user-visible register and are lowered normally
	// below; every other privileged op (rfi, sc) has no runtime-library
	// hook to call into per this package's scope, so it traps instead of
	// silently falling through as unimplemented.
	if ppc.IsPrivileged(insn) && insn.ID() != ppc.InstMfmsr && insn.ID() != ppc.InstMtmsr {
		return fmt.Sprintf("\t__builtin_debugtrap(); // privileged instruction %s", insn.Opcode.Name), true
	}

	rd, ra, rb := int(insn.Operands[0]), int(insn.Operands[1]), int(insn.Operands[2])

	switch insn.ID() {
	// integer arithmetic
	case ppc.InstAdd:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %s.u32;", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstAddc:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %s.u32; %s.ca = %s.u32 < %s.u32;",
			t.r(rd, locals), t.r(ra, locals), t.r(rb, locals), t.xer(locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstAdde:
		return fmt.Sprintf("\t{ uint64_t _s = (uint64_t)%s.u32 + %s.u32 + %s.ca; %s.u32 = (uint32_t)_s; %s.ca = _s >> 32; }",
			t.r(ra, locals), t.r(rb, locals), t.xer(locals), t.r(rd, locals), t.xer(locals)), true
	case ppc.InstAddi:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %d;", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstAddic:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %d; %s.ca = %s.u32 < %s.u32;",
			t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2]), t.xer(locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstAddis:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %d;", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])<<16), true
	case ppc.InstAddme:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %s.ca - 1;", t.r(rd, locals), t.r(ra, locals), t.xer(locals)), true
	case ppc.InstAddze:
		return fmt.Sprintf("\t%s.u32 = %s.u32 + %s.ca;", t.r(rd, locals), t.r(ra, locals), t.xer(locals)), true
	case ppc.InstSubf:
		return fmt.Sprintf("\t%s.u32 = %s.u32 - %s.u32;", t.r(rd, locals), t.r(rb, locals), t.r(ra, locals)), true
	case ppc.InstSubfc:
		return fmt.Sprintf("\t%s.u32 = %s.u32 - %s.u32; %s.ca = %s.u32 >= %s.u32;",
			t.r(rd, locals), t.r(rb, locals), t.r(ra, locals), t.xer(locals), t.r(rb, locals), t.r(ra, locals)), true
	case ppc.InstSubfic:
		return fmt.Sprintf("\t%s.u32 = %d - %s.u32; %s.ca = (uint32_t)%d >= %s.u32;",
			t.r(rd, locals), int32(insn.Operands[2]), t.r(ra, locals), t.xer(locals), int32(insn.Operands[2]), t.r(ra, locals)), true
	case ppc.InstSubfe:
		return fmt.Sprintf("\t{ uint64_t _s = (uint64_t)%s.u32 + (uint32_t)~%s.u32 + %s.ca; %s.u32 = (uint32_t)_s; %s.ca = _s >> 32; }",
			t.r(rb, locals), t.r(ra, locals), t.xer(locals), t.r(rd, locals), t.xer(locals)), true
	case ppc.InstSubfme:
		return fmt.Sprintf("\t%s.u32 = ~%s.u32 + %s.ca - 1;", t.r(rd, locals), t.r(ra, locals), t.xer(locals)), true
	case ppc.InstSubfze:
		return fmt.Sprintf("\t%s.u32 = ~%s.u32 + %s.ca;", t.r(rd, locals), t.r(ra, locals), t.xer(locals)), true
	case ppc.InstNeg:
		return fmt.Sprintf("\t%s.u32 = (uint32_t)(-(int32_t)%s.u32);", t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstMulli:
		return fmt.Sprintf("\t%s.s32 = %s.s32 * %d;", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstMullw:
		return fmt.Sprintf("\t%s.s32 = %s.s32 * %s.s32;", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstMulhw:
		return fmt.Sprintf("\t%s.s32 = (int32_t)(((int64_t)%s.s32 * (int64_t)%s.s32) >> 32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstMulhwu:
		return fmt.Sprintf("\t%s.u32 = (uint32_t)(((uint64_t)%s.u32 * (uint64_t)%s.u32) >> 32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstDivw:
		return fmt.Sprintf("\t%s.s32 = %s.s32 / %s.s32;", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstDivwu:
		return fmt.Sprintf("\t%s.u32 = %s.u32 / %s.u32;", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true

	// logic
	//
	// Unlike add-family X-form ops (rD at bits6-10), the logical family
	// encodes its destination rA at bits11-15 and source rS at bits6-10 —
	// the assembler prints "and rA,rS,rB" but the bit layout keeps rS in
	// the same slot as a store's source register. rd/ra/rb below are just
	// operand-slot names (Operands[0]/[1]/[2]); rd is the rS source here.
	case ppc.InstAnd:
		return fmt.Sprintf("\t%s.u32 = %s.u32 & %s.u32;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstAndc:
		return fmt.Sprintf("\t%s.u32 = %s.u32 & ~%s.u32;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstAndi:
		return fmt.Sprintf("\t%s.u32 = %s.u32 & 0x%X;", t.r(ra, locals), t.r(rd, locals), uint32(insn.Operands[2])&0xFFFF), true
	case ppc.InstAndis:
		return fmt.Sprintf("\t%s.u32 = %s.u32 & 0x%X;", t.r(ra, locals), t.r(rd, locals), (uint32(insn.Operands[2])&0xFFFF)<<16), true
	case ppc.InstOr:
		if rd == rb {
			return fmt.Sprintf("\t%s.u32 = %s.u32;", t.r(ra, locals), t.r(rd, locals)), true // mr
		}
		return fmt.Sprintf("\t%s.u32 = %s.u32 | %s.u32;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstOrc:
		return fmt.Sprintf("\t%s.u32 = %s.u32 | ~%s.u32;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstOri:
		return fmt.Sprintf("\t%s.u32 = %s.u32 | 0x%X;", t.r(ra, locals), t.r(rd, locals), uint32(insn.Operands[2])&0xFFFF), true
	case ppc.InstOris:
		return fmt.Sprintf("\t%s.u32 = %s.u32 | 0x%X;", t.r(ra, locals), t.r(rd, locals), (uint32(insn.Operands[2])&0xFFFF)<<16), true
	case ppc.InstXor:
		return fmt.Sprintf("\t%s.u32 = %s.u32 ^ %s.u32;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstXori:
		return fmt.Sprintf("\t%s.u32 = %s.u32 ^ 0x%X;", t.r(ra, locals), t.r(rd, locals), uint32(insn.Operands[2])&0xFFFF), true
	case ppc.InstXoris:
		return fmt.Sprintf("\t%s.u32 = %s.u32 ^ 0x%X;", t.r(ra, locals), t.r(rd, locals), (uint32(insn.Operands[2])&0xFFFF)<<16), true
	case ppc.InstNand:
		return fmt.Sprintf("\t%s.u32 = ~(%s.u32 & %s.u32);", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstNor:
		return fmt.Sprintf("\t%s.u32 = ~(%s.u32 | %s.u32);", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstEqv:
		return fmt.Sprintf("\t%s.u32 = ~(%s.u32 ^ %s.u32);", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstExtsb:
		return fmt.Sprintf("\t%s.s32 = (int8_t)%s.u32;", t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstExtsh:
		return fmt.Sprintf("\t%s.s32 = (int16_t)%s.u32;", t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstCntlzw:
		return fmt.Sprintf("\t%s.u32 = %s.u32 ? __builtin_clz(%s.u32) : 32;", t.r(ra, locals), t.r(rd, locals), t.r(rd, locals)), true

	// shifts and rotates
	case ppc.InstSlw:
		return fmt.Sprintf("\t%s.u32 = (%s.u32 & 0x1F) >= 32 ? 0 : %s.u32 << (%s.u32 & 0x1F);",
			t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstSrw:
		return fmt.Sprintf("\t%s.u32 = (%s.u32 & 0x1F) >= 32 ? 0 : %s.u32 >> (%s.u32 & 0x1F);",
			t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstSraw:
		return fmt.Sprintf("\t%s.s32 = %s.s32 >> std::min<uint32_t>(%s.u32 & 0x3F, 31); %s.ca = %s.s32 < 0 && (%s.u32 << (32 - std::min<uint32_t>(%s.u32, 32))) != 0;",
			t.r(ra, locals), t.r(rd, locals), t.r(rb, locals), t.xer(locals), t.r(rd, locals), t.r(rd, locals), t.r(rb, locals)), true
	case ppc.InstSrawi:
		sh := uint32(insn.Operands[2])
		return fmt.Sprintf("\t%s.s32 = %s.s32 >> %d; %s.ca = %s.s32 < 0 && (%s.u32 << %d) != 0;",
			t.r(ra, locals), t.r(rd, locals), sh, t.xer(locals), t.r(rd, locals), t.r(rd, locals), 32-sh), true
	case ppc.InstRlwinm:
		return t.emitRlwinm(insn, locals, false), true
	case ppc.InstRlwimi:
		return t.emitRlwinm(insn, locals, true), true
	case ppc.InstRlwnm:
		mb := uint32(insn.Operands[3]) >> 8 & 0x1F
		me := uint32(insn.Operands[3]) & 0x1F
		mask := rotateMask(mb, me)
		return fmt.Sprintf("\t%s.u32 = std::rotl(%s.u32, %s.u32 & 0x1F) & 0x%XU;", t.r(ra, locals), t.r(rd, locals), t.r(rb, locals), mask), true

	// compares
	case ppc.InstCmpw:
		crf := rd >> 2
		return fmt.Sprintf("\t%s.compare(%s.s32, %s.s32);", t.cr(crf, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstCmpwi:
		crf := rd >> 2
		return fmt.Sprintf("\t%s.compare(%s.s32, %d);", t.cr(crf, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstCmplw:
		crf := rd >> 2
		return fmt.Sprintf("\t%s.compare(%s.u32, %s.u32);", t.cr(crf, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstCmplwi:
		crf := rd >> 2
		return fmt.Sprintf("\t%s.compare(%s.u32, 0x%Xu);", t.cr(crf, locals), t.r(ra, locals), uint32(insn.Operands[2])&0xFFFF), true

	// condition-register logicals
	case ppc.InstCrand, ppc.InstCror, ppc.InstCrxor:
		return t.emitCRLogical(insn, locals), true
	case ppc.InstMcrf:
		return fmt.Sprintf("\t%s = %s;", t.cr(rd>>2, locals), t.cr(ra>>2, locals)), true

	// integer loads
	case ppc.InstLwz:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U32(%s.u32 + %d);", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLwzu:
		return fmt.Sprintf("\t%s.u32 += %d; %s.u32 = PPC_LOAD_U32(%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLwzx:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U32(%s.u32 + %s.u32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLwzux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.u32 = PPC_LOAD_U32(%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLbz:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U8(%s.u32 + %d);", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLbzu:
		return fmt.Sprintf("\t%s.u32 += %d; %s.u32 = PPC_LOAD_U8(%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLbzx:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U8(%s.u32 + %s.u32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLbzux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.u32 = PPC_LOAD_U8(%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLhz:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U16(%s.u32 + %d);", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLhzu:
		return fmt.Sprintf("\t%s.u32 += %d; %s.u32 = PPC_LOAD_U16(%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLhzx:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U16(%s.u32 + %s.u32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLhzux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.u32 = PPC_LOAD_U16(%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLha:
		return fmt.Sprintf("\t%s.s32 = (int16_t)PPC_LOAD_U16(%s.u32 + %d);", t.r(rd, locals), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLhau:
		return fmt.Sprintf("\t%s.u32 += %d; %s.s32 = (int16_t)PPC_LOAD_U16(%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLhax:
		return fmt.Sprintf("\t%s.s32 = (int16_t)PPC_LOAD_U16(%s.u32 + %s.u32);", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLhaux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.s32 = (int16_t)PPC_LOAD_U16(%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.r(ra, locals)), true
	case ppc.InstLwarx:
		return fmt.Sprintf("\t%s.u32 = PPC_LOAD_U32(%s.u32 + %s.u32); %s.u32 = %s.u32;",
			t.r(rd, locals), t.r(ra, locals), t.r(rb, locals), t.reserved(locals), t.r(rd, locals)), true
	case ppc.InstLwbrx:
		return fmt.Sprintf("\t%s.u32 = __builtin_bswap32(PPC_LOAD_U32(%s.u32 + %s.u32));", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLhbrx:
		return fmt.Sprintf("\t%s.u32 = __builtin_bswap16(PPC_LOAD_U16(%s.u32 + %s.u32));", t.r(rd, locals), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLmw:
		return t.emitLmw(insn, locals), true

	// integer stores
	case ppc.InstStw:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %d, %s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals)), true
	case ppc.InstStwu:
		return fmt.Sprintf("\t%s.u32 += %d; PPC_STORE_U32(%s.u32, %s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstStwx:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %s.u32, %s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals)), true
	case ppc.InstStwux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; PPC_STORE_U32(%s.u32, %s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstStwcx:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %s.u32, %s.u32); %s.eq = true;", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals), t.cr(0, locals)), true
	case ppc.InstStwbrx:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %s.u32, __builtin_bswap32(%s.u32));", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals)), true
	case ppc.InstStb:
		return fmt.Sprintf("\tPPC_STORE_U8(%s.u32 + %d, (uint8_t)%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals)), true
	case ppc.InstStbu:
		return fmt.Sprintf("\t%s.u32 += %d; PPC_STORE_U8(%s.u32, (uint8_t)%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstStbx:
		return fmt.Sprintf("\tPPC_STORE_U8(%s.u32 + %s.u32, (uint8_t)%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals)), true
	case ppc.InstStbux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; PPC_STORE_U8(%s.u32, (uint8_t)%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstSth:
		return fmt.Sprintf("\tPPC_STORE_U16(%s.u32 + %d, (uint16_t)%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(rd, locals)), true
	case ppc.InstSthu:
		return fmt.Sprintf("\t%s.u32 += %d; PPC_STORE_U16(%s.u32, (uint16_t)%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstSthx:
		return fmt.Sprintf("\tPPC_STORE_U16(%s.u32 + %s.u32, (uint16_t)%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals)), true
	case ppc.InstSthux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; PPC_STORE_U16(%s.u32, (uint16_t)%s.u32);", t.r(ra, locals), t.r(rb, locals), t.r(ra, locals), t.r(rd, locals)), true
	case ppc.InstSthbrx:
		return fmt.Sprintf("\tPPC_STORE_U16(%s.u32 + %s.u32, __builtin_bswap16((uint16_t)%s.u32));", t.r(ra, locals), t.r(rb, locals), t.r(rd, locals)), true
	case ppc.InstStmw:
		return t.emitStmw(insn, locals), true

	// floating point loads/stores
	case ppc.InstLfs:
		return fmt.Sprintf("\t%s.f64 = std::bit_cast<float>(PPC_LOAD_U32(%s.u32 + %d));", t.f(rd), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLfsu:
		return fmt.Sprintf("\t%s.u32 += %d; %s.f64 = std::bit_cast<float>(PPC_LOAD_U32(%s.u32));", t.r(ra, locals), int32(insn.Operands[2]), t.f(rd), t.r(ra, locals)), true
	case ppc.InstLfsx:
		return fmt.Sprintf("\t%s.f64 = std::bit_cast<float>(PPC_LOAD_U32(%s.u32 + %s.u32));", t.f(rd), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLfsux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.f64 = std::bit_cast<float>(PPC_LOAD_U32(%s.u32));", t.r(ra, locals), t.r(rb, locals), t.f(rd), t.r(ra, locals)), true
	case ppc.InstLfd:
		return fmt.Sprintf("\t%s.u64 = PPC_LOAD_U64(%s.u32 + %d);", t.f(rd), t.r(ra, locals), int32(insn.Operands[2])), true
	case ppc.InstLfdu:
		return fmt.Sprintf("\t%s.u32 += %d; %s.u64 = PPC_LOAD_U64(%s.u32);", t.r(ra, locals), int32(insn.Operands[2]), t.f(rd), t.r(ra, locals)), true
	case ppc.InstLfdx:
		return fmt.Sprintf("\t%s.u64 = PPC_LOAD_U64(%s.u32 + %s.u32);", t.f(rd), t.r(ra, locals), t.r(rb, locals)), true
	case ppc.InstLfdux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; %s.u64 = PPC_LOAD_U64(%s.u32);", t.r(ra, locals), t.r(rb, locals), t.f(rd), t.r(ra, locals)), true
	case ppc.InstStfs:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %d, std::bit_cast<uint32_t>((float)%s.f64));", t.r(ra, locals), int32(insn.Operands[2]), t.f(rd)), true
	case ppc.InstStfsu:
		return fmt.Sprintf("\t%s.u32 += %d; PPC_STORE_U32(%s.u32, std::bit_cast<uint32_t>((float)%s.f64));", t.r(ra, locals), int32(insn.Operands[2]), t.r(ra, locals), t.f(rd)), true
	case ppc.InstStfsx:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %s.u32, std::bit_cast<uint32_t>((float)%s.f64));", t.r(ra, locals), t.r(rb, locals), t.f(rd)), true
	case ppc.InstStfsux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; PPC_STORE_U32(%s.u32, std::bit_cast<uint32_t>((float)%s.f64));", t.r(ra, locals), t.r(rb, locals), t.r(ra, locals), t.f(rd)), true
	case ppc.InstStfd:
		return fmt.Sprintf("\tPPC_STORE_U64(%s.u32 + %d, %s.u64);", t.r(ra, locals), int32(insn.Operands[2]), t.f(rd)), true
	case ppc.InstStfdu:
		return fmt.Sprintf("\t%s.u32 += %d; PPC_STORE_U64(%s.u32, %s.u64);", t.r(ra, locals), int32(insn.Operands[2]), t.r(ra, locals), t.f(rd)), true
	case ppc.InstStfdx:
		return fmt.Sprintf("\tPPC_STORE_U64(%s.u32 + %s.u32, %s.u64);", t.r(ra, locals), t.r(rb, locals), t.f(rd)), true
	case ppc.InstStfdux:
		return fmt.Sprintf("\t%s.u32 += %s.u32; PPC_STORE_U64(%s.u32, %s.u64);", t.r(ra, locals), t.r(rb, locals), t.r(ra, locals), t.f(rd)), true
	case ppc.InstStfiwx:
		return fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %s.u32, std::bit_cast<uint32_t>((float)%s.f64));", t.r(ra, locals), t.r(rb, locals), t.f(rd)), true

	// floating point arithmetic
	case ppc.InstFadd, ppc.InstFadds:
		return fmt.Sprintf("\t%s.f64 = %s.f64 + %s.f64;", t.f(rd), t.f(ra), t.f(rb)), true
	case ppc.InstFsub, ppc.InstFsubs:
		return fmt.Sprintf("\t%s.f64 = %s.f64 - %s.f64;", t.f(rd), t.f(ra), t.f(rb)), true
	case ppc.InstFmul, ppc.InstFmuls:
		return fmt.Sprintf("\t%s.f64 = %s.f64 * %s.f64;", t.f(rd), t.f(ra), t.f(rb)), true
	case ppc.InstFdiv, ppc.InstFdivs:
		return fmt.Sprintf("\t%s.f64 = %s.f64 / %s.f64;", t.f(rd), t.f(ra), t.f(rb)), true
	case ppc.InstFmadd, ppc.InstFmadds:
		return fmt.Sprintf("\t%s.f64 = %s.f64 * %s.f64 + %s.f64;", t.f(rd), t.f(ra), t.f(int(insn.Operands[3])), t.f(rb)), true
	case ppc.InstFmsub, ppc.InstFmsubs:
		return fmt.Sprintf("\t%s.f64 = %s.f64 * %s.f64 - %s.f64;", t.f(rd), t.f(ra), t.f(int(insn.Operands[3])), t.f(rb)), true
	case ppc.InstFnmadd, ppc.InstFnmadds:
		return fmt.Sprintf("\t%s.f64 = -(%s.f64 * %s.f64 + %s.f64);", t.f(rd), t.f(ra), t.f(int(insn.Operands[3])), t.f(rb)), true
	case ppc.InstFnmsub, ppc.InstFnmsubs:
		return fmt.Sprintf("\t%s.f64 = -(%s.f64 * %s.f64 - %s.f64);", t.f(rd), t.f(ra), t.f(int(insn.Operands[3])), t.f(rb)), true
	case ppc.InstFabs:
		return fmt.Sprintf("\t%s.f64 = fabs(%s.f64);", t.f(rd), t.f(ra)), true
	case ppc.InstFnabs:
		return fmt.Sprintf("\t%s.f64 = -fabs(%s.f64);", t.f(rd), t.f(ra)), true
	case ppc.InstFneg:
		return fmt.Sprintf("\t%s.f64 = -%s.f64;", t.f(rd), t.f(ra)), true
	case ppc.InstFmr:
		return fmt.Sprintf("\t%s.f64 = %s.f64;", t.f(rd), t.f(ra)), true
	case ppc.InstFsel:
		return fmt.Sprintf("\t%s.f64 = (%s.f64 >= 0.0) ? %s.f64 : %s.f64;", t.f(rd), t.f(ra), t.f(int(insn.Operands[3])), t.f(rb)), true
	case ppc.InstFsqrt, ppc.InstFsqrts:
		return fmt.Sprintf("\t%s.f64 = sqrt(%s.f64);", t.f(rd), t.f(rb)), true
	case ppc.InstFres:
		return fmt.Sprintf("\t%s.f64 = 1.0 / %s.f64;", t.f(rd), t.f(rb)), true
	case ppc.InstFrsqrte:
		return fmt.Sprintf("\t%s.f64 = 1.0 / sqrt(%s.f64);", t.f(rd), t.f(rb)), true
	case ppc.InstFrsp:
		return fmt.Sprintf("\t%s.f64 = (float)%s.f64;", t.f(rd), t.f(rb)), true
	case ppc.InstFctiw:
		return fmt.Sprintf("\t%s.u64 = (uint32_t)(int32_t)%s.f64;", t.f(rd), t.f(rb)), true
	case ppc.InstFctiwz:
		return fmt.Sprintf("\t%s.u64 = (uint32_t)(int32_t)std::trunc(%s.f64);", t.f(rd), t.f(rb)), true
	case ppc.InstFcmpo, ppc.InstFcmpu:
		crf := rd >> 2
		return fmt.Sprintf("\t%s.compare(%s.f64, %s.f64);", t.cr(crf, locals), t.f(ra), t.f(rb)), true

	// special-purpose register moves
	case ppc.InstMflr:
		return fmt.Sprintf("\t%s.u32 = ctx.lr.u32;", t.r(rd, locals)), true
	case ppc.InstMtlr:
		return fmt.Sprintf("\tctx.lr.u32 = %s.u32;", t.r(rd, locals)), true
	case ppc.InstMfcr:
		return fmt.Sprintf("\t%s.u32 = PPCGetCR(ctx);", t.r(rd, locals)), true
	case ppc.InstMtcrf:
		return fmt.Sprintf("\tPPCSetCRF(ctx, 0x%X, %s.u32);", uint32(insn.Operands[1]), t.r(rd, locals)), true
	case ppc.InstMfmsr:
		return fmt.Sprintf("\t%s.u32 = ctx.msr.raw;", t.r(rd, locals)), true
	case ppc.InstMtmsr:
		return fmt.Sprintf("\tctx.msr.raw = %s.u32;", t.r(rd, locals)), true
	case ppc.InstMffs:
		return fmt.Sprintf("\t%s.u64 = ctx.fpscr.loadFromHost();", t.f(rd)), true
	case ppc.InstMtfsb0, ppc.InstMtfsb1, ppc.InstMtfsf:
		return "\t/* FPSCR bit set: no host-visible effect tracked */;", true
	case ppc.InstMfspr, ppc.InstMftb:
		return t.emitMfspr(insn, locals), true
	case ppc.InstMtspr:
		return t.emitMtspr(insn, locals), true

	// no-ops and ordering hints with no host-observable effect
	case ppc.InstSync, ppc.InstIsync, ppc.InstEieio,
		ppc.InstDcbf, ppc.InstDcbi, ppc.InstDcbst, ppc.InstDcbt, ppc.InstDcbtst, ppc.InstDcbz, ppc.InstIcbi,
		ppc.InstNop:
		return "\t;", true

	case ppc.InstTw, ppc.InstTwi:
		return "\t__builtin_debugtrap();", true
	}

	return "", false
}

func (t *Translator) emitCRLogical(insn ppc.Instruction, locals *LocalVariables) string {
	crd, cra, crb := int(insn.Operands[0]), int(insn.Operands[1]), int(insn.Operands[2])
	dBit, aBit, bBit := crd&3, cra&3, crb&3
	bitName := func(b int) string {
		switch b {
		case 0:
			return "lt"
		case 1:
			return "gt"
		case 2:
			return "eq"
		default:
			return "so"
		}
	}
	op := "&"
	switch insn.ID() {
	case ppc.InstCror:
		op = "|"
	case ppc.InstCrxor:
		op = "^"
	}
	return fmt.Sprintf("\t%s.%s = %s.%s %s %s.%s;",
		t.cr(crd>>2, locals), bitName(dBit), t.cr(cra>>2, locals), bitName(aBit), op, t.cr(crb>>2, locals), bitName(bBit))
}

func (t *Translator) emitMfspr(insn ppc.Instruction, locals *LocalVariables) string {
	rd, spr := int(insn.Operands[0]), uint32(insn.Operands[1])
	switch spr {
	case 1:
		return fmt.Sprintf("\t%s.u32 = %s.Get();", t.r(rd, locals), t.xer(locals))
	case 8:
		return fmt.Sprintf("\t%s.u32 = ctx.lr.u32;", t.r(rd, locals))
	case 9:
		return fmt.Sprintf("\t%s.u32 = %s.u32;", t.r(rd, locals), CTRName(t.cfg, locals))
	}
	if spr >= 912 && spr <= 919 { // GQR0-7
		idx := spr - 912
		return fmt.Sprintf("\t%s.u32 = %s.u32;", t.r(rd, locals), GQRName(int(idx), locals))
	}
	return fmt.Sprintf("\t%s.u32 = 0; /* spr %d unmodeled */", t.r(rd, locals), spr)
}

func (t *Translator) emitMtspr(insn ppc.Instruction, locals *LocalVariables) string {
	rd, spr := int(insn.Operands[0]), uint32(insn.Operands[1])
	switch spr {
	case 1:
		return fmt.Sprintf("\t%s.Set(%s.u32);", t.xer(locals), t.r(rd, locals))
	case 8:
		return fmt.Sprintf("\tctx.lr.u32 = %s.u32;", t.r(rd, locals))
	case 9:
		return fmt.Sprintf("\t%s.u32 = %s.u32;", CTRName(t.cfg, locals), t.r(rd, locals))
	}
	if spr >= 912 && spr <= 919 {
		idx := spr - 912
		return fmt.Sprintf("\t%s.u32 = %s.u32;", GQRName(int(idx), locals), t.r(rd, locals))
	}
	return fmt.Sprintf("\t/* spr %d unmodeled */;", spr)
}

func rotateMask(mb, me uint32) uint32 {
	var mask uint32
	if mb <= me {
		for i := mb; i <= me; i++ {
			mask |= 1 << (31 - i)
		}
	} else {
		for i := uint32(0); i <= me; i++ {
			mask |= 1 << (31 - i)
		}
		for i := mb; i <= 31; i++ {
			mask |= 1 << (31 - i)
		}
	}
	return mask
}

// emitRlwinm lowers rlwinm/rlwimi: rotate rS left by SH, mask with
// [MB,ME], merging into rA's existing bits for rlwimi.
func (t *Translator) emitRlwinm(insn ppc.Instruction, locals *LocalVariables, insert bool) string {
	rs, ra := int(insn.Operands[0]), int(insn.Operands[1])
	sh := uint32(insn.Operands[2]) & 0x1F
	mb := uint32(insn.Operands[3]) >> 8 & 0x1F
	me := uint32(insn.Operands[3]) & 0x1F
	mask := rotateMask(mb, me)

	rotated := fmt.Sprintf("std::rotl(%s.u32, %d)", t.r(rs, locals), sh)
	if insert {
		return fmt.Sprintf("\t%s.u32 = (%s.u32 & ~0x%XU) | (%s & 0x%XU);", t.r(ra, locals), t.r(ra, locals), mask, rotated, mask)
	}
	return fmt.Sprintf("\t%s.u32 = %s & 0x%XU;", t.r(ra, locals), rotated, mask)
}

func (t *Translator) emitLmw(insn ppc.Instruction, locals *LocalVariables) string {
	rd, ra := int(insn.Operands[0]), int(insn.Operands[1])
	disp := int32(insn.Operands[2])
	var b []byte
	for i := rd; i <= 31; i++ {
		off := disp + int32(i-rd)*4
		b = append(b, []byte(fmt.Sprintf("\t%s.u32 = PPC_LOAD_U32(%s.u32 + %d);\n", t.r(i, locals), t.r(ra, locals), off))...)
	}
	return string(b[:len(b)-1])
}

func (t *Translator) emitStmw(insn ppc.Instruction, locals *LocalVariables) string {
	rs, ra := int(insn.Operands[0]), int(insn.Operands[1])
	disp := int32(insn.Operands[2])
	var b []byte
	for i := rs; i <= 31; i++ {
		off := disp + int32(i-rs)*4
		b = append(b, []byte(fmt.Sprintf("\tPPC_STORE_U32(%s.u32 + %d, %s.u32);\n", t.r(ra, locals), off, t.r(i, locals)))...)
	}
	return string(b[:len(b)-1])
}
