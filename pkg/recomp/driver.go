// Package recomp recompiles an analyzed RPX image's functions into the
// PPCContext-based C++ dialect the embedded runtime header expects,
// following the discovery order, translation-unit partitioning, and
// dedup-on-write behavior of RebrewU's original driver.
package recomp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/ApfelTeeSaft/RebrewU/internal/config"
	"github.com/ApfelTeeSaft/RebrewU/pkg/analysis"
	"github.com/ApfelTeeSaft/RebrewU/pkg/jumptable"
	"github.com/ApfelTeeSaft/RebrewU/pkg/ppc"
	"github.com/ApfelTeeSaft/RebrewU/pkg/rpx"
)

// restoreHelper describes one synthesized register-save/restore stub, the
// four families the driver fabricates at fixed config-declared addresses
// before any real discovery runs.
type restoreHelper struct {
	namePrefix string
	address    uint32
	size       func(i int) uint32
}

// SynthesizeHelpers registers the four register-save/restore families'
// symbols, eighteen per family (__restgprlr_N, __savegprlr_N, __restfpr_N,
// __savefpr_N for N in [14,31]) at their configured base addresses, skipping any family
// whose base address is zero (unused by this binary).
func SynthesizeHelpers(cfg *config.Config, symbols *rpx.SymbolStore) {
	families := []restoreHelper{
		{"__restgprlr_", cfg.RestGprLr14Address, func(i int) uint32 { return uint32((32-i)*4 + 12) }},
		{"__savegprlr_", cfg.SaveGprLr14Address, func(i int) uint32 { return uint32((32-i)*4 + 8) }},
		{"__restfpr_", cfg.RestFpr14Address, func(i int) uint32 { return uint32((32-i)*4 + 4) }},
		{"__savefpr_", cfg.SaveFpr14Address, func(i int) uint32 { return uint32((32-i)*4 + 4) }},
	}

	for _, fam := range families {
		if fam.address == 0 {
			continue
		}
		for i := 14; i <= 31; i++ {
			addr := fam.address + uint32(i-14)*4
			symbols.Add(rpx.Symbol{
				Name:    fmt.Sprintf("%s%d", fam.namePrefix, i),
				Address: addr,
				Size:    fam.size(i),
				Type:    rpx.SymbolFunction,
			})
		}
	}
}

// AddManualFunctions registers every config.Functions entry as a
// sub_<hex>-named function symbol, the way the original names
// unannotated manually declared functions.
func AddManualFunctions(cfg *config.Config, symbols *rpx.SymbolStore) {
	for addr, size := range cfg.Functions {
		if _, exists := symbols.Get(addr); exists {
			continue
		}
		symbols.Add(rpx.Symbol{
			Name:    fmt.Sprintf("sub_%08X", addr),
			Address: addr,
			Size:    size,
			Type:    rpx.SymbolFunction,
		})
	}
}

// DiscoveredFunction is one function the driver found, either from the
// image's own symbol table, a manual config entry, a synthesized helper,
// or the forward-scan analyzer.
type DiscoveredFunction struct {
	Name string
	Fn   analysis.Function
}

// Discover runs the full discovery pipeline against img: synthesize
// helpers, add manual functions, lift existing Function symbols, then
// forward-scan every code section for anything the symbol table missed.
// Functions are returned sorted by address, matching Analyse's final sort.
//
// Only the forward scan calls analysis.Analyze: helpers, manual functions,
// and symtab-lifted functions all get their Function record built directly
// from the declared/symbol size, matching Analyse's three separate
// emplace_back(address, size) loops — none of them re-walk the CFG.
func Discover(img *rpx.Image, cfg *config.Config) []DiscoveredFunction {
	SynthesizeHelpers(cfg, img.Symbols)
	AddManualFunctions(cfg, img.Symbols)

	var found []DiscoveredFunction
	covered := make(map[uint32]bool)
	added := make(map[uint32]bool)

	for _, sym := range img.Symbols.Functions() {
		if sym.Size == 0 || added[sym.Address] {
			continue
		}
		added[sym.Address] = true
		found = append(found, DiscoveredFunction{
			Name: sym.Name,
			Fn:   analysis.Function{Base: uint64(sym.Address), Size: uint64(sym.Size)},
		})
		markCovered(covered, sym.Address, sym.Size)
	}

	for _, sec := range img.CodeSections() {
		forwardScan(img, sec, cfg, covered, &found)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Fn.Base < found[j].Fn.Base })
	return found
}

func markCovered(covered map[uint32]bool, base, size uint32) {
	for a := base; a < base+size; a += 4 {
		covered[a] = true
	}
}

// forwardScan walks one code section word by word, skipping over
// already-covered function ranges and consulting the invalid-instruction
// map before falling back to Function::Analyze at each unclaimed address.
func forwardScan(img *rpx.Image, sec *rpx.Section, cfg *config.Config, covered map[uint32]bool, found *[]DiscoveredFunction) {
	addr := sec.Base
	end := sec.Base + sec.Size

	for addr < end {
		if covered[addr] {
			addr += 4
			continue
		}

		off := addr - sec.Base
		if off+4 <= uint32(len(sec.Data)) {
			word := beUint32(sec.Data[off : off+4])
			if skip, ok := cfg.InvalidInstructions[word]; ok && skip > 0 {
				addr += skip
				continue
			}
		}

		if sym, ok := img.Symbols.Get(addr); ok && sym.Type == rpx.SymbolFunction {
			addr += 4
			continue
		}

		code := sec.Data[off:]
		fn := analysis.Analyze(code, uint64(addr))
		if fn.Size >= 4 {
			name := fmt.Sprintf("sub_%08X", addr)
			img.Symbols.Add(rpx.Symbol{Name: name, Address: addr, Size: uint32(fn.Size), Type: rpx.SymbolFunction})
			*found = append(*found, DiscoveredFunction{Name: name, Fn: fn})
			markCovered(covered, addr, uint32(fn.Size))
			addr += uint32(fn.Size)
			continue
		}

		addr += 4
	}
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Recompiler orchestrates translation of every discovered function into
// partitioned translation units.
type Recompiler struct {
	cfg        *config.Config
	img        *rpx.Image
	translator *Translator
	tables     []jumptable.Table
}

func NewRecompiler(img *rpx.Image, cfg *config.Config) *Recompiler {
	return &Recompiler{cfg: cfg, img: img, translator: NewTranslator(cfg)}
}

// ScanJumpTables runs the heuristic switch-table scanner over every code
// section, merging the config's manually authored entries over anything
// the scanner also found at the same dispatch site (manual entries win).
func (r *Recompiler) ScanJumpTables() {
	var tables []jumptable.Table
	for _, sec := range r.img.CodeSections() {
		tables = append(tables, jumptable.Scan(sec.Data, sec.Base)...)
	}

	byBase := make(map[uint32]jumptable.Table, len(tables))
	for _, t := range tables {
		byBase[t.Base] = t
	}
	for base, manual := range r.cfg.SwitchTables {
		byBase[base] = jumptable.Table{
			Base: base, Variant: jumptable.Absolute, Reg: int(manual.R),
			Default: manual.Default, Labels: manual.Labels,
		}
	}

	r.tables = make([]jumptable.Table, 0, len(byBase))
	for _, t := range byBase {
		r.tables = append(r.tables, t)
	}
}

// dispatchSpan is how far past a table's Base its bctr can sit: the longest
// recognized dispatch sequence (eight words) plus the bctr after it.
const dispatchSpan = 9 * 4

func (r *Recompiler) tableAt(addr uint32) (jumptable.Table, bool) {
	for _, t := range r.tables {
		if t.Contains(addr, dispatchSpan) {
			return t, true
		}
	}
	return jumptable.Table{}, false
}

// symbolResolver resolves an absolute address to a direct-call name if a
// known function's range covers it.
func (r *Recompiler) symbolResolver() SymbolResolver {
	return func(addr uint32) (string, bool) {
		sym, ok := r.img.Symbols.Get(addr)
		if !ok || sym.Type != rpx.SymbolFunction {
			return "", false
		}
		return sym.Name, true
	}
}

// RecompileFunction renders one function's PPC_FUNC_IMPL body: a label
// pass over every branch target and switch-table case in range, then a
// straight instruction-by-instruction translation with mid-asm hooks
// spliced in at their configured addresses.
func (r *Recompiler) RecompileFunction(d DiscoveredFunction) string {
	fn := d.Fn
	code := r.img.Find(uint32(fn.Base))
	if code == nil || uint64(len(code)) < fn.Size {
		return fmt.Sprintf("// %s: no code available\n", d.Name)
	}
	code = code[:fn.Size]

	labels := r.collectLabels(fn, code)
	labelName := func(target uint32) (string, bool) {
		if !fn.Contains(uint64(target)) {
			return "", false
		}
		if _, ok := labels[target]; !ok {
			return "", false
		}
		return fmt.Sprintf("loc_%08X", target), true
	}

	locals := &LocalVariables{}
	var body strings.Builder
	fpState := FPStateUnknown

	for off := uint64(0); off < fn.Size; off += 4 {
		addr := uint32(fn.Base + off)
		word := beUint32(code[off : off+4])
		insn := ppc.Decode(word, addr)

		if _, isLabel := labels[addr]; isLabel {
			fmt.Fprintf(&body, "loc_%08X:\n", addr)
			fpState = ResetAtLabel()
		}

		if hook, ok := r.cfg.MidAsmHooks[addr]; ok && !hook.AfterInstruction {
			emitHook(&body, hook)
		}

		if r.cfg.GeneratePairedSingleSupport {
			fpState = emitFPModeTransition(&body, insn, fpState)
		}

		body.WriteString(r.recompileInstruction(insn, addr, labelName, locals))
		body.WriteString("\n")

		if hook, ok := r.cfg.MidAsmHooks[addr]; ok && hook.AfterInstruction {
			emitHook(&body, hook)
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "PPC_FUNC_IMPL(__imp__%s) {\n\tPPC_FUNC_PROLOGUE();\n", d.Name)
	for _, decl := range locals.Declarations() {
		out.WriteString(decl)
		out.WriteString("\n")
	}
	out.WriteString(body.String())
	out.WriteString("}\n")

	if !r.cfg.GenerateDebugInfo {
		fmt.Fprintf(&out, "PPC_WEAK_FUNC(%s) { __imp__%s(ctx, base); }\n", d.Name, d.Name)
	} else {
		fmt.Fprintf(&out, "// debug build: %s emitted with its weak alias trampoline\n", d.Name)
		fmt.Fprintf(&out, "PPC_WEAK_FUNC(%s) { __imp__%s(ctx, base); }\n", d.Name, d.Name)
	}

	return out.String()
}

func emitHook(body *strings.Builder, hook config.MidAsmHook) {
	args := "ctx, base"
	if len(hook.Registers) > 0 {
		args = args + ", " + strings.Join(hook.Registers, ", ")
	}
	fmt.Fprintf(body, "\t%s(%s);\n", hook.Name, args)

	switch {
	case hook.Return:
		body.WriteString("\treturn;\n")
	case hook.JumpAddress != 0:
		fmt.Fprintf(body, "\tgoto loc_%08X;\n", hook.JumpAddress)
	case hook.ReturnOnTrue || hook.ReturnOnFalse || hook.JumpAddressOnTrue != 0 || hook.JumpAddressOnFalse != 0:
		if hook.ReturnOnTrue {
			body.WriteString("\tif (__hookResult) return;\n")
		}
		if hook.JumpAddressOnTrue != 0 {
			fmt.Fprintf(body, "\tif (__hookResult) goto loc_%08X;\n", hook.JumpAddressOnTrue)
		}
		if hook.ReturnOnFalse {
			body.WriteString("\tif (!__hookResult) return;\n")
		}
		if hook.JumpAddressOnFalse != 0 {
			fmt.Fprintf(body, "\tif (!__hookResult) goto loc_%08X;\n", hook.JumpAddressOnFalse)
		}
	}
}

// collectLabels gathers every address inside fn that a branch targets
// (excluding call targets) plus every case label of a switch table whose
// dispatch site falls inside fn, up to the original's per-hook cap of
// three synthesized labels (jump_address/_on_true/_on_false) contributed
// by mid-asm hooks.
func (r *Recompiler) collectLabels(fn analysis.Function, code []byte) map[uint32]bool {
	labels := make(map[uint32]bool)

	for off := uint64(0); off < fn.Size; off += 4 {
		addr := uint32(fn.Base + off)
		word := beUint32(code[off : off+4])
		insn := ppc.Decode(word, addr)
		if !insn.Valid() {
			continue
		}
		if insn.ID() == ppc.InstB || insn.ID() == ppc.InstBc {
			target := ppc.BranchTarget(insn)
			if fn.Contains(uint64(target)) {
				labels[target] = true
			}
		}
	}

	for _, t := range r.tables {
		if !fn.Contains(uint64(t.Base)) {
			continue
		}
		for _, l := range t.Labels {
			if fn.Contains(uint64(l)) {
				labels[l] = true
			}
		}
		if fn.Contains(uint64(t.Default)) {
			labels[t.Default] = true
		}
	}

	for addr, hook := range r.cfg.MidAsmHooks {
		if !fn.Contains(uint64(addr)) {
			continue
		}
		for _, target := range []uint32{hook.JumpAddress, hook.JumpAddressOnTrue, hook.JumpAddressOnFalse} {
			if target != 0 && fn.Contains(uint64(target)) {
				labels[target] = true
			}
		}
	}

	return labels
}

func (r *Recompiler) recompileInstruction(insn ppc.Instruction, addr uint32, label LabelFunc, locals *LocalVariables) string {
	if !insn.Valid() {
		if r.cfg.TreatUnknownInstructionsAsNop {
			return fmt.Sprintf("\t; // unrecognized word at 0x%08X treated as nop", addr)
		}
		return fmt.Sprintf("\t__builtin_debugtrap(); // unrecognized word at 0x%08X", addr)
	}

	if ppc.IsBranch(insn) {
		if insn.ID() == ppc.InstBcctr {
			if t, ok := r.tableAt(addr); ok {
				defaultLabel, _ := label(t.Default)
				if defaultLabel == "" {
					defaultLabel = fmt.Sprintf("loc_%08X", t.Default)
				}
				return TranslateDenseSwitch(t.Reg, t.Labels, defaultLabel, label, locals, r.translator)
			}
		}
		return r.translator.TranslateBranch(insn, label, r.symbolResolver(), locals)
	}

	body, ok := r.translator.Translate(insn, locals)
	if !ok {
		if r.cfg.TreatUnknownInstructionsAsNop {
			return fmt.Sprintf("\t; // %s unimplemented, treated as nop", insn.Opcode.Name)
		}
		return fmt.Sprintf("\t__builtin_debugtrap(); // %s unimplemented", insn.Opcode.Name)
	}
	return body
}

// RecompileAll translates every discovered function in address order and
// writes the partitioned translation units plus the shared header/mapping
// artifacts into outDir.
func (r *Recompiler) RecompileAll(outDir string, fns []DiscoveredFunction) error {
	r.ScanJumpTables()

	bodies := make([]string, len(fns))
	for i, d := range fns {
		bodies[i] = r.RecompileFunction(d)
		logProgress(i, len(fns))
	}

	if err := GenerateHeaderFiles(outDir, r.cfg, r.img); err != nil {
		return err
	}
	if err := GenerateSharedHeader(outDir, r.img.Symbols); err != nil {
		return err
	}
	if err := GenerateFuncMapping(outDir, r.img.Symbols); err != nil {
		return err
	}

	for i, unit := range PartitionUnits(bodies) {
		if err := WriteUnit(outDir, i, unit); err != nil {
			return err
		}
	}

	log.Infof("recompiled %d functions into %s", len(fns), outDir)
	return nil
}
