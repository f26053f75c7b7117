package recomp

import (
	"fmt"
	"strings"

	"github.com/ApfelTeeSaft/RebrewU/pkg/ppc"
)

// SymbolResolver maps an absolute address to the function name covering
// it, so a call/branch outside the current function can be emitted as a
// direct C++ call instead of falling back to PPC_CALL_INDIRECT_FUNC.
type SymbolResolver func(addr uint32) (name string, ok bool)

func crBitName(bit uint32) string {
	switch bit & 3 {
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

// branchCondition renders BO/BI as a boolean C++ expression. It models the
// two forms RebrewU's compiler-emitted code actually uses: an optional CTR
// decrement-and-test (bdnz/bdz, BO bit 2 clear) and an optional CR-bit test
// (BO bit 4 clear) — combined with && when both are present. This is not a
// full decode of every BO encoding in the ISA manual (several combinations
// describe branches no compiler emits), only the ones the corpus exercises.
func (t *Translator) branchCondition(bo, bi uint32, locals *LocalVariables) string {
	var parts []string

	if bo&0x4 == 0 {
		ctrName := CTRName(t.cfg, locals)
		cmp := "!= 0"
		if bo&0x2 != 0 {
			cmp = "== 0"
		}
		parts = append(parts, fmt.Sprintf("((--%s.u32) %s)", ctrName, cmp))
	}

	if bo&0x10 == 0 {
		field := t.cr(int(bi>>2), locals)
		bit := crBitName(bi)
		if bo&0x8 == 0 {
			parts = append(parts, fmt.Sprintf("!%s.%s", field, bit))
		} else {
			parts = append(parts, fmt.Sprintf("%s.%s", field, bit))
		}
	}

	if len(parts) == 0 {
		return "true"
	}
	return strings.Join(parts, " && ")
}

// callTarget renders a call to an absolute address, direct when a symbol
// covers it, indirect via PPC_CALL_INDIRECT_FUNC otherwise.
func callTarget(target uint32, resolve SymbolResolver) string {
	if name, ok := resolve(target); ok {
		return fmt.Sprintf("%s(ctx, base);", name)
	}
	return fmt.Sprintf("PPC_CALL_INDIRECT_FUNC(0x%08X);", target)
}

// TranslateBranch lowers one branch-family instruction (b/ba/bl/bla/bc/
// bclr/bcctr). label resolves a target address to an intra-function goto
// label; resolve names a call target's owning function for direct calls.
func (t *Translator) TranslateBranch(insn ppc.Instruction, label LabelFunc, resolve SymbolResolver, locals *LocalVariables) string {
	switch insn.ID() {
	case ppc.InstB, ppc.InstBa:
		target := ppc.BranchTarget(insn)
		if name, ok := label(target); ok {
			return fmt.Sprintf("\tgoto %s;", name)
		}
		return fmt.Sprintf("\t%s return;", callTarget(target, resolve))

	case ppc.InstBl, ppc.InstBla:
		target := ppc.BranchTarget(insn)
		return fmt.Sprintf("\tctx.lr.u32 = 0x%08X; %s", insn.Address+4, callTarget(target, resolve))

	case ppc.InstBc:
		bo, bi := uint32(insn.Operands[0]), uint32(insn.Operands[1])
		target := ppc.BranchTarget(insn)
		cond := t.branchCondition(bo, bi, locals)
		if name, ok := label(target); ok {
			return fmt.Sprintf("\tif (%s) goto %s;", cond, name)
		}
		return fmt.Sprintf("\tif (%s) { %s return; }", cond, callTarget(target, resolve))

	case ppc.InstBclr:
		bo, bi := uint32(insn.Operands[0]), uint32(insn.Operands[1])
		linked := ppc.IsLinkBit(insn.Raw)
		action := "return;"
		if linked {
			// blrl: branch to LR, then link the *following* instruction as
			// the new return address — the old LR value is consumed as the
			// call target, so this behaves like an indirect call-then-fall.
			action = fmt.Sprintf("{ uint32_t _t = ctx.lr.u32; ctx.lr.u32 = 0x%08X; PPC_CALL_INDIRECT_FUNC(_t); }", insn.Address+4)
		}
		if ppc.IsUnconditionalCTRBranch(insn) {
			return "\t" + action
		}
		cond := t.branchCondition(bo, bi, locals)
		return fmt.Sprintf("\tif (%s) { %s }", cond, action)

	case ppc.InstBcctr:
		bo, bi := uint32(insn.Operands[0]), uint32(insn.Operands[1])
		linked := ppc.IsLinkBit(insn.Raw)
		dispatch := fmt.Sprintf("PPC_CALL_INDIRECT_FUNC(%s.u32);", CTRName(t.cfg, locals))
		if linked {
			dispatch = fmt.Sprintf("ctx.lr.u32 = 0x%08X; %s", insn.Address+4, dispatch)
		} else {
			dispatch += " return;"
		}
		if ppc.IsUnconditionalCTRBranch(insn) {
			return "\t" + dispatch
		}
		cond := t.branchCondition(bo, bi, locals)
		return fmt.Sprintf("\tif (%s) { %s }", cond, dispatch)
	}

	return "\t__builtin_debugtrap();"
}

// TranslateDenseSwitch lowers a bcctr dispatch site that a jump-table scan
// resolved to a dense address list, emitting a switch over the selector
// register instead of an indirect PPC_CALL_INDIRECT_FUNC-style lookup.
func TranslateDenseSwitch(reg int, labels []uint32, defaultLabel string, label LabelFunc, locals *LocalVariables, t *Translator) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\tswitch (%s.u32) {\n", t.r(reg, locals))
	for i, target := range labels {
		name, ok := label(target)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\tcase %d: goto %s;\n", i, name)
	}
	fmt.Fprintf(&b, "\tdefault: goto %s;\n", defaultLabel)
	b.WriteString("\t}")
	return b.String()
}
