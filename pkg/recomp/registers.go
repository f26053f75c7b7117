package recomp

import (
	"fmt"

	"github.com/ApfelTeeSaft/RebrewU/internal/config"
)

// LocalVariables tracks which context-struct fields a function's emitted
// body promoted to a local, so the prologue can declare exactly those and
// nothing else — mirroring RecompilerLocalVariables.
type LocalVariables struct {
	CTR      bool
	XER      bool
	Reserved bool
	Env      bool
	Temp     bool
	VTemp    bool
	EA       bool
	PSTemp   bool

	CR  [8]bool
	GQR [8]bool
	R   [32]bool
	F   [32]bool
}

// Declarations renders the local-variable declaration lines this
// function's body needs, in the same field order the original emits them.
func (l *LocalVariables) Declarations() []string {
	var out []string
	if l.CTR {
		out = append(out, "\tPPCRegister ctr{};")
	}
	if l.XER {
		out = append(out, "\tPPCXERRegister xer{};")
	}
	if l.Reserved {
		out = append(out, "\tPPCRegister reserved{};")
	}
	for i := 0; i < 8; i++ {
		if l.CR[i] {
			out = append(out, fmt.Sprintf("\tPPCCRRegister cr%d{};", i))
		}
		if l.GQR[i] {
			out = append(out, fmt.Sprintf("\tPPCRegister gqr%d{};", i))
		}
	}
	for i := 0; i < 32; i++ {
		if l.R[i] {
			out = append(out, fmt.Sprintf("\tPPCRegister r%d{};", i))
		}
		if l.F[i] {
			out = append(out, fmt.Sprintf("\tPPCFPRegister f%d{};", i))
		}
	}
	if l.Env {
		out = append(out, "\tPPCContext env{};")
	}
	if l.Temp {
		out = append(out, "\tPPCRegister temp{};")
	}
	if l.VTemp {
		out = append(out, "\tPPCRegister vTemp{};")
	}
	if l.EA {
		out = append(out, "\tuint32_t ea{};")
	}
	if l.PSTemp {
		out = append(out, "\tPPCFPRegister ps_temp{};")
	}
	return out
}

// RegisterName mirrors Recompiler::GetRegisterName: it resolves a register
// reference through the config's "local variable" policy, returning either
// a short local name (and recording the promotion in locals) or a full
// context-struct field access.
func RegisterName(cfg *config.Config, index int, kind byte, locals *LocalVariables) string {
	if kind == 'r' && index >= 0 && index < 32 {
		nonArgument := index == 0 || index == 2 || index == 11 || index == 12
		if (cfg.NonArgumentAsLocal && nonArgument) || (cfg.NonVolatileAsLocal && index >= 14) {
			locals.R[index] = true
			return fmt.Sprintf("r%d", index)
		}
		return fmt.Sprintf("ctx.r%d", index)
	}
	return fmt.Sprintf("ctx.%c%d", kind, index)
}

// FPRegisterName resolves a floating-point register reference to its
// context field; FPRs are never promoted to locals.
func FPRegisterName(index int) string {
	return fmt.Sprintf("ctx.f%d", index)
}

// CRFieldName resolves one condition-register field, promoting to a local
// when cr_as_local is configured.
func CRFieldName(cfg *config.Config, field int, locals *LocalVariables) string {
	if cfg.CrAsLocal {
		locals.CR[field] = true
		return fmt.Sprintf("cr%d", field)
	}
	return fmt.Sprintf("ctx.cr[%d]", field)
}

// CTRName resolves the count register.
func CTRName(cfg *config.Config, locals *LocalVariables) string {
	if cfg.CtrAsLocal {
		locals.CTR = true
		return "ctr"
	}
	return "ctx.ctr"
}

// XERName resolves the XER register.
func XERName(cfg *config.Config, locals *LocalVariables) string {
	if cfg.XerAsLocal {
		locals.XER = true
		return "xer"
	}
	return "ctx.xer"
}

// ReservedName resolves the load-reserve shadow register.
func ReservedName(cfg *config.Config, locals *LocalVariables) string {
	if cfg.ReservedAsLocal {
		locals.Reserved = true
		return "reserved"
	}
	return "ctx.reserved"
}

// GQRName resolves a graphics quantization register.
func GQRName(index int, locals *LocalVariables) string {
	locals.GQR[index] = true
	return fmt.Sprintf("gqr%d", index)
}
