package recomp

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apex/log"
	"github.com/ApfelTeeSaft/RebrewU/internal/config"
	"github.com/ApfelTeeSaft/RebrewU/pkg/rpx"
	"github.com/pkg/errors"
)

// ppcContextHeader is the target-language PowerPC runtime context: register
// unions, the PPCContext struct, and the load/store/call macros every
// generated translation unit relies on. Written out verbatim alongside the
// per-run config header.
//
//go:embed templates/ppc_context.h
var ppcContextHeader []byte

// functionsPerUnit caps how many functions land in one translation unit
// before a new file is opened, matching the original driver's partitioning
// so no single generated .cpp grows unbounded.
const functionsPerUnit = 256

// Unit accumulates the emitted bodies for one translation unit file.
type Unit struct {
	Index     int
	Functions []string
}

// writeFile writes data to path only if its contents actually differ from
// what's already there, mirroring SaveCurrentOutData's compare-then-skip
// behavior so an unchanged function doesn't touch the file's mtime and
// force a downstream rebuild.
func writeFile(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil {
		if len(existing) == len(data) && bytes.Equal(existing, data) {
			return nil
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// GenerateHeaderFiles writes ppc_context.h and ppc_config.h into outDir.
// ppc_config.h carries the run's resolved code-generation flags and memory
// layout as preprocessor defines, the way recompiler_config.cpp's
// GenerateConfigFiles does; ppc_context.h is the embedded runtime unchanged.
func GenerateHeaderFiles(outDir string, cfg *config.Config, img *rpx.Image) error {
	contextPath := filepath.Join(outDir, "ppc_context.h")
	if err := writeFile(contextPath, ppcContextHeader); err != nil {
		return errors.Wrap(err, "writing ppc_context.h")
	}

	var b bytes.Buffer
	fmt.Fprintln(&b, "#pragma once")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, `#include "ppc_context.h"`)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "#define PPC_IMAGE_BASE 0x%08X\n", img.Base)
	fmt.Fprintf(&b, "#define PPC_IMAGE_SIZE 0x%08X\n", img.Size)
	fmt.Fprintf(&b, "#define PPC_MEM1_BASE 0x%08X\n", cfg.Mem1Base)
	fmt.Fprintf(&b, "#define PPC_MEM1_SIZE 0x%08X\n", cfg.Mem1Size)
	fmt.Fprintf(&b, "#define PPC_MEM2_BASE 0x%08X\n", cfg.Mem2Base)
	fmt.Fprintf(&b, "#define PPC_MEM2_SIZE 0x%08X\n", cfg.Mem2Size)
	fmt.Fprintln(&b)

	boolDefine := func(name string, value bool) {
		if value {
			fmt.Fprintf(&b, "#define %s 1\n", name)
		}
	}
	boolDefine("PPC_CONFIG_SKIP_LR", cfg.SkipLR)
	boolDefine("PPC_CONFIG_SKIP_MSR", cfg.SkipMSR)
	boolDefine("PPC_CONFIG_CTR_AS_LOCAL", cfg.CtrAsLocal)
	boolDefine("PPC_CONFIG_XER_AS_LOCAL", cfg.XerAsLocal)
	boolDefine("PPC_CONFIG_RESERVED_AS_LOCAL", cfg.ReservedAsLocal)
	boolDefine("PPC_CONFIG_CR_AS_LOCAL", cfg.CrAsLocal)
	boolDefine("PPC_CONFIG_NON_ARGUMENT_AS_LOCAL", cfg.NonArgumentAsLocal)
	boolDefine("PPC_CONFIG_NON_VOLATILE_AS_LOCAL", cfg.NonVolatileAsLocal)
	boolDefine("PPC_CONFIG_PAIRED_SINGLE_SUPPORT", cfg.GeneratePairedSingleSupport)
	boolDefine("PPC_CONFIG_GQR_SUPPORT", cfg.GenerateGQRSupport)
	boolDefine("PPC_CONFIG_OPTIMIZE_FOR_WIIU_HARDWARE", cfg.OptimizeForWiiUHardware)
	boolDefine("PPC_CONFIG_ENABLE_CACHE_OPTIMIZATIONS", cfg.EnableCacheOptimizations)
	boolDefine("PPC_CONFIG_TREAT_UNKNOWN_AS_NOP", cfg.TreatUnknownInstructionsAsNop)
	boolDefine("PPC_CONFIG_DEBUG_INFO", cfg.GenerateDebugInfo)

	configPath := filepath.Join(outDir, "ppc_config.h")
	if err := writeFile(configPath, b.Bytes()); err != nil {
		return errors.Wrap(err, "writing ppc_config.h")
	}
	return nil
}

// GenerateSharedHeader writes ppc_recomp_shared.h, which forward-declares
// every recompiled function via PPC_EXTERN_FUNC so translation units can
// call each other without seeing each other's bodies.
func GenerateSharedHeader(outDir string, symbols *rpx.SymbolStore) error {
	var b bytes.Buffer
	fmt.Fprintln(&b, "#pragma once")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, `#include "ppc_config.h"`)
	fmt.Fprintln(&b)

	for _, sym := range symbols.Functions() {
		fmt.Fprintf(&b, "PPC_EXTERN_FUNC(%s);\n", sym.Name)
	}

	return writeFile(filepath.Join(outDir, "ppc_recomp_shared.h"), b.Bytes())
}

// GenerateFuncMapping writes ppc_func_mapping.cpp, the PPCFuncMappings[]
// array PPC_CALL_INDIRECT_FUNC scans to resolve an indirect call by its
// absolute address.
func GenerateFuncMapping(outDir string, symbols *rpx.SymbolStore) error {
	fns := symbols.Functions()
	sort.Slice(fns, func(i, j int) bool { return fns[i].Address < fns[j].Address })

	var b bytes.Buffer
	fmt.Fprintln(&b, `#include "ppc_recomp_shared.h"`)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "PPCFuncMapping PPCFuncMappings[] = {")
	for _, sym := range fns {
		fmt.Fprintf(&b, "\t{ 0x%08X, %s },\n", sym.Address, sym.Name)
	}
	fmt.Fprintln(&b, "\t{ 0, nullptr },")
	fmt.Fprintln(&b, "};")

	return writeFile(filepath.Join(outDir, "ppc_func_mapping.cpp"), b.Bytes())
}

// unitProlog is the fixed #include block every generated translation unit
// opens with.
const unitProlog = "#include \"ppc_recomp_shared.h\"\n#include <cmath>\n#include <immintrin.h>\n\n"

// WriteUnit renders and saves one translation unit's file, numbering it
// ppc_recomp.<index>.cpp, matching the per-256-function partitioning.
func WriteUnit(outDir string, index int, bodies []string) error {
	var b bytes.Buffer
	b.WriteString(unitProlog)
	for _, body := range bodies {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	name := fmt.Sprintf("ppc_recomp.%d.cpp", index)
	return writeFile(filepath.Join(outDir, name), b.Bytes())
}

// PartitionUnits splits ordered function bodies into functionsPerUnit-sized
// groups, the unit boundary the driver flushes a new file at.
func PartitionUnits(bodies []string) [][]string {
	var units [][]string
	for i := 0; i < len(bodies); i += functionsPerUnit {
		end := i + functionsPerUnit
		if end > len(bodies) {
			end = len(bodies)
		}
		units = append(units, bodies[i:end])
	}
	return units
}

// logProgress mirrors the driver's "recompiled N/M functions" progress
// line, emitted every 100 functions and on the last one.
func logProgress(index, total int) {
	if index%100 == 0 || index == total-1 {
		log.Infof("recompiled %d/%d functions", index+1, total)
	}
}
