package recomp

import (
	"fmt"
	"strings"

	"github.com/ApfelTeeSaft/RebrewU/pkg/ppc"
)

// FPState tracks the floating-point/paired-single unit's last known mode so
// the translator only emits a flush-mode toggle when the mode is actually
// changing, instead of before every single FP instruction. Matches the
// state machine recompiler.cpp resets to Unknown at every label, since a
// backward branch could have entered with either mode active.
type FPState int

const (
	FPStateUnknown FPState = iota
	FPStateScalar
	FPStatePaired
)

// ResetAtLabel returns the "don't know" state a label boundary must reset
// to, since control can reach it with the FPU in either mode.
func ResetAtLabel() FPState { return FPStateUnknown }

// emitFPModeTransition writes the ctx.fpscr flush-mode toggle required to
// move from current into the mode insn needs, and returns the resulting
// state. Scalar FP ops and loads/stores need denormals flushed off; paired
// singles need them flushed on. Anything else leaves current untouched, so
// a run of plain integer instructions between two FP ops doesn't re-probe
// the mode on every line.
func emitFPModeTransition(body *strings.Builder, insn ppc.Instruction, current FPState) FPState {
	switch {
	case ppc.IsPairedSingle(insn):
		if current != FPStatePaired {
			body.WriteString("\tctx.fpscr.enableFlushModeUnconditional();\n")
		}
		return FPStatePaired
	case ppc.IsFloatingPoint(insn):
		if current != FPStateScalar {
			body.WriteString("\tctx.fpscr.disableFlushModeUnconditional();\n")
		}
		return FPStateScalar
	default:
		return current
	}
}

// quantizeType mirrors the GQR type-field encoding (bits 0-2 of each
// half-word) that selects how a quantized paired-single load/store packs
// its two floats.
type quantizeType int

const (
	quantizeFloat quantizeType = 0
	quantizeU8    quantizeType = 4
	quantizeU16   quantizeType = 5
	quantizeS8    quantizeType = 6
	quantizeS16   quantizeType = 7
)

func (q quantizeType) cType() string {
	switch q {
	case quantizeU8:
		return "uint8_t"
	case quantizeU16:
		return "uint16_t"
	case quantizeS8:
		return "int8_t"
	case quantizeS16:
		return "int16_t"
	default:
		return "float"
	}
}

// emitPairedSingle lowers one paired-single arithmetic, move, merge, compare
// or select instruction into per-lane statements on the ps0/ps1 fields of
// the context's FP registers; it emits no calls to runtime helpers.
func (t *Translator) emitPairedSingle(insn ppc.Instruction, locals *LocalVariables) (string, bool) {
	fd, fa, fb := int(insn.Operands[0]), int(insn.Operands[1]), int(insn.Operands[2])

	switch insn.ID() {
	case ppc.InstPsAdd:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 + ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 + ctx.f%d.ps1;",
			fd, fa, fb, fd, fa, fb), true
	case ppc.InstPsSub:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 - ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 - ctx.f%d.ps1;",
			fd, fa, fb, fd, fa, fb), true
	case ppc.InstPsMul:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps1;",
			fd, fa, fb, fd, fa, fb), true
	case ppc.InstPsDiv:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 / ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 / ctx.f%d.ps1;",
			fd, fa, fb, fd, fa, fb), true
	case ppc.InstPsAbs:
		return fmt.Sprintf("\tctx.f%d.ps0 = fabsf(ctx.f%d.ps0); ctx.f%d.ps1 = fabsf(ctx.f%d.ps1);", fd, fa, fd, fa), true
	case ppc.InstPsNabs:
		return fmt.Sprintf("\tctx.f%d.ps0 = -fabsf(ctx.f%d.ps0); ctx.f%d.ps1 = -fabsf(ctx.f%d.ps1);", fd, fa, fd, fa), true
	case ppc.InstPsNeg:
		return fmt.Sprintf("\tctx.f%d.ps0 = -ctx.f%d.ps0; ctx.f%d.ps1 = -ctx.f%d.ps1;", fd, fa, fd, fa), true
	case ppc.InstPsMr:
		return fmt.Sprintf("\tctx.f%d = ctx.f%d;", fd, fa), true
	case ppc.InstPsSum0:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 + ctx.f%d.ps1; ctx.f%d.ps1 = ctx.f%d.ps1;", fd, fa, fb, fd, fb), true
	case ppc.InstPsSum1:
		return fmt.Sprintf("\tctx.f%d.ps1 = ctx.f%d.ps0 + ctx.f%d.ps1; ctx.f%d.ps0 = ctx.f%d.ps0;", fd, fa, fb, fd, fb), true
	case ppc.InstPsMerge00:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps0;", fd, fa, fd, fb), true
	case ppc.InstPsMerge01:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1;", fd, fa, fd, fb), true
	case ppc.InstPsMerge10:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps1; ctx.f%d.ps1 = ctx.f%d.ps0;", fd, fa, fd, fb), true
	case ppc.InstPsMerge11:
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps1; ctx.f%d.ps1 = ctx.f%d.ps1;", fd, fa, fd, fb), true
	case ppc.InstPsRes:
		return fmt.Sprintf("\tctx.f%d.ps0 = 1.0f / ctx.f%d.ps0; ctx.f%d.ps1 = 1.0f / ctx.f%d.ps1;", fd, fa, fd, fa), true
	case ppc.InstPsRsqrte:
		return fmt.Sprintf("\tctx.f%d.ps0 = 1.0f / sqrtf(ctx.f%d.ps0); ctx.f%d.ps1 = 1.0f / sqrtf(ctx.f%d.ps1);", fd, fa, fd, fa), true
	case ppc.InstPsMadd:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps0 + ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps1 + ctx.f%d.ps1;",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsMsub:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps0 - ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps1 - ctx.f%d.ps1;",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsMuls0:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps0;",
			fd, fa, fc, fd, fa, fc), true
	case ppc.InstPsMuls1:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps1; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps1;",
			fd, fa, fc, fd, fa, fc), true
	case ppc.InstPsMadds0:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps0 + ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps0 + ctx.f%d.ps1;",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsMadds1:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = ctx.f%d.ps0 * ctx.f%d.ps1 + ctx.f%d.ps0; ctx.f%d.ps1 = ctx.f%d.ps1 * ctx.f%d.ps1 + ctx.f%d.ps1;",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsNmadd:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = -(ctx.f%d.ps0 * ctx.f%d.ps0 + ctx.f%d.ps0); ctx.f%d.ps1 = -(ctx.f%d.ps1 * ctx.f%d.ps1 + ctx.f%d.ps1);",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsNmsub:
		fc := int(insn.Operands[3])
		return fmt.Sprintf("\tctx.f%d.ps0 = -(ctx.f%d.ps0 * ctx.f%d.ps0 - ctx.f%d.ps0); ctx.f%d.ps1 = -(ctx.f%d.ps1 * ctx.f%d.ps1 - ctx.f%d.ps1);",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	case ppc.InstPsCmpu0, ppc.InstPsCmpo0:
		crf := int(insn.Operands[0]) >> 2
		return fmt.Sprintf("\tctx.cr[%d].compare(ctx.f%d.ps0, ctx.f%d.ps0);", crf, fa, fb), true
	case ppc.InstPsCmpu1, ppc.InstPsCmpo1:
		crf := int(insn.Operands[0]) >> 2
		return fmt.Sprintf("\tctx.cr[%d].compare(ctx.f%d.ps1, ctx.f%d.ps1);", crf, fa, fb), true
	case ppc.InstPsSel:
		fc := int(insn.Operands[3])
		return fmt.Sprintf(
			"\tctx.f%d.ps0 = (ctx.f%d.ps0 >= 0.0f) ? ctx.f%d.ps0 : ctx.f%d.ps0; ctx.f%d.ps1 = (ctx.f%d.ps1 >= 0.0f) ? ctx.f%d.ps1 : ctx.f%d.ps1;",
			fd, fa, fc, fb, fd, fa, fc, fb), true
	}

	return "", false
}

// quantizedBase renders the effective-address expression for a psq_*
// instruction and, for the update forms (psq_lu/psq_lux/psq_stu/psq_stux),
// the statement that writes the new address back into rA first — matching
// the non-quantized *u/*ux load/store forms' write-before-use ordering.
func quantizedBase(insn ppc.Instruction, raName string) (writeback, base string) {
	switch insn.ID() {
	case ppc.InstPsqLu, ppc.InstPsqStu:
		offset := int32(insn.Operands[2])
		return fmt.Sprintf("\t\t%s.u32 += %d;\n", raName, offset), fmt.Sprintf("%s.u32", raName)
	case ppc.InstPsqLux, ppc.InstPsqStux:
		rb := int(insn.Operands[2])
		return fmt.Sprintf("\t\t%s.u32 += ctx.r%d.u32;\n", raName, rb), fmt.Sprintf("%s.u32", raName)
	case ppc.InstPsqLx, ppc.InstPsqStx:
		rb := int(insn.Operands[2])
		return "", fmt.Sprintf("(%s.u32 + ctx.r%d.u32)", raName, rb)
	default: // InstPsqL, InstPsqSt
		offset := int32(insn.Operands[2])
		return "", fmt.Sprintf("(%s.u32 + %d)", raName, offset)
	}
}

// emitQuantizedLoad lowers psq_l/psq_lu/psq_lx/psq_lux into a runtime
// switch on the load-type field of the instruction's GQR, one case per
// quantize type. The configured gqr_N_load helper addresses are not used.
func (t *Translator) emitQuantizedLoad(insn ppc.Instruction, locals *LocalVariables) string {
	fd := int(insn.Operands[0])
	ra := int(insn.Operands[1])
	qi := int(insn.Operands[3])

	gqrName := GQRName(qi, locals)
	writeback, base := quantizedBase(insn, t.r(ra, locals))

	return fmt.Sprintf(
		"\t{\n"+
			"%s"+
			"\t\tuint32_t ea = %s;\n"+
			"\t\tuint32_t qtype = (%s.u32 >> 16) & 0x7;\n"+
			"\t\tuint32_t scale = (%s.u32 >> 24) & 0x3F;\n"+
			"\t\t(void)scale;\n"+
			"\t\tswitch (qtype) {\n"+
			"\t\tcase %d: ctx.f%d.ps0 = std::bit_cast<float>(PPC_LOAD_U32(ea)); ctx.f%d.ps1 = std::bit_cast<float>(PPC_LOAD_U32(ea + 4)); break;\n"+
			"\t\tcase %d: ctx.f%d.ps0 = (%s)PPC_LOAD_U8(ea); ctx.f%d.ps1 = (%s)PPC_LOAD_U8(ea + 1); break;\n"+
			"\t\tcase %d: ctx.f%d.ps0 = (%s)PPC_LOAD_U16(ea); ctx.f%d.ps1 = (%s)PPC_LOAD_U16(ea + 2); break;\n"+
			"\t\tcase %d: ctx.f%d.ps0 = (%s)PPC_LOAD_U8(ea); ctx.f%d.ps1 = (%s)PPC_LOAD_U8(ea + 1); break;\n"+
			"\t\tcase %d: ctx.f%d.ps0 = (%s)PPC_LOAD_U16(ea); ctx.f%d.ps1 = (%s)PPC_LOAD_U16(ea + 2); break;\n"+
			"\t\t}\n"+
			"\t}",
		writeback, base, gqrName, gqrName,
		quantizeFloat, fd, fd,
		quantizeU8, fd, quantizeU8.cType(), fd, quantizeU8.cType(),
		quantizeU16, fd, quantizeU16.cType(), fd, quantizeU16.cType(),
		quantizeS8, fd, quantizeS8.cType(), fd, quantizeS8.cType(),
		quantizeS16, fd, quantizeS16.cType(), fd, quantizeS16.cType())
}

// emitQuantizedStore lowers psq_st/psq_stu/psq_stx/psq_stux symmetrically
// to emitQuantizedLoad.
func (t *Translator) emitQuantizedStore(insn ppc.Instruction, locals *LocalVariables) string {
	fs := int(insn.Operands[0])
	ra := int(insn.Operands[1])
	qi := int(insn.Operands[3])

	gqrName := GQRName(qi, locals)
	writeback, base := quantizedBase(insn, t.r(ra, locals))

	return fmt.Sprintf(
		"\t{\n"+
			"%s"+
			"\t\tuint32_t ea = %s;\n"+
			"\t\tuint32_t qtype = %s.u32 & 0x7;\n"+
			"\t\tswitch (qtype) {\n"+
			"\t\tcase %d: PPC_STORE_U32(ea, std::bit_cast<uint32_t>(ctx.f%d.ps0)); PPC_STORE_U32(ea + 4, std::bit_cast<uint32_t>(ctx.f%d.ps1)); break;\n"+
			"\t\tcase %d: PPC_STORE_U8(ea, (%s)ctx.f%d.ps0); PPC_STORE_U8(ea + 1, (%s)ctx.f%d.ps1); break;\n"+
			"\t\tcase %d: PPC_STORE_U16(ea, (%s)ctx.f%d.ps0); PPC_STORE_U16(ea + 2, (%s)ctx.f%d.ps1); break;\n"+
			"\t\tcase %d: PPC_STORE_U8(ea, (%s)ctx.f%d.ps0); PPC_STORE_U8(ea + 1, (%s)ctx.f%d.ps1); break;\n"+
			"\t\tcase %d: PPC_STORE_U16(ea, (%s)ctx.f%d.ps0); PPC_STORE_U16(ea + 2, (%s)ctx.f%d.ps1); break;\n"+
			"\t\t}\n"+
			"\t}",
		writeback, base, gqrName,
		quantizeFloat, fs, fs,
		quantizeU8, quantizeU8.cType(), fs, quantizeU8.cType(), fs,
		quantizeU16, quantizeU16.cType(), fs, quantizeU16.cType(), fs,
		quantizeS8, quantizeS8.cType(), fs, quantizeS8.cType(), fs,
		quantizeS16, quantizeS16.cType(), fs, quantizeS16.cType(), fs)
}
