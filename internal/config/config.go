// Package config loads the recompiler's TOML configuration: the
// WiiU-specific helper addresses, memory layout, code-generation flags,
// and the manual function/invalid-instruction/mid-asm-hook tables that
// drive the recompiler driver and instruction translator.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/apex/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// MidAsmHook is a user-authored injection point: a call to a named
// function spliced in before or after a specific instruction, optionally
// replacing the fall-through with a return or jump.
type MidAsmHook struct {
	Address   uint32   `toml:"address"`
	Name      string   `toml:"name"`
	Registers []string `toml:"registers"`

	Return          bool `toml:"return"`
	ReturnOnTrue    bool `toml:"return_on_true"`
	ReturnOnFalse   bool `toml:"return_on_false"`

	JumpAddress         uint32 `toml:"jump_address"`
	JumpAddressOnTrue   uint32 `toml:"jump_address_on_true"`
	JumpAddressOnFalse  uint32 `toml:"jump_address_on_false"`

	AfterInstruction bool `toml:"after_instruction"`
}

// ManualFunction is a user-declared (address, size) pair for a function
// the analyzer shouldn't have to discover on its own.
type ManualFunction struct {
	Address uint32 `toml:"address"`
	Size    uint32 `toml:"size"`
}

// InvalidInstruction is a (word, skip) pair consulted by the driver's
// forward scan when it walks over bytes that don't decode as real code.
type InvalidInstruction struct {
	Data uint32 `toml:"data"`
	Size uint32 `toml:"size"`
}

type mainSection struct {
	FilePath            string `toml:"file_path"`
	OutDirectoryPath    string `toml:"out_directory_path"`
	SwitchTableFilePath string `toml:"switch_table_file_path"`

	SkipLR              bool `toml:"skip_lr"`
	SkipMSR             bool `toml:"skip_msr"`
	CtrAsLocal          bool `toml:"ctr_as_local"`
	XerAsLocal          bool `toml:"xer_as_local"`
	ReservedAsLocal     bool `toml:"reserved_as_local"`
	CrAsLocal           bool `toml:"cr_as_local"`
	NonArgumentAsLocal  bool `toml:"non_argument_as_local"`
	NonVolatileAsLocal  bool `toml:"non_volatile_as_local"`

	RestGprLr14Address uint32 `toml:"restgprlr_14_address"`
	SaveGprLr14Address uint32 `toml:"savegprlr_14_address"`
	RestFpr14Address   uint32 `toml:"restfpr_14_address"`
	SaveFpr14Address   uint32 `toml:"savefpr_14_address"`
	RestVmx14Address   uint32 `toml:"restvmx_14_address"`
	SaveVmx14Address   uint32 `toml:"savevmx_14_address"`
	RestVmx64Address   uint32 `toml:"restvmx_64_address"`
	SaveVmx64Address   uint32 `toml:"savevmx_64_address"`
	LongJmpAddress     uint32 `toml:"longjmp_address"`
	SetJmpAddress      uint32 `toml:"setjmp_address"`

	Mem1Base uint32 `toml:"mem1_base"`
	Mem1Size uint32 `toml:"mem1_size"`
	Mem2Base uint32 `toml:"mem2_base"`
	Mem2Size uint32 `toml:"mem2_size"`

	GeneratePairedSingleSupport bool `toml:"generate_paired_single_support"`
	GenerateGQRSupport          bool `toml:"generate_gqr_support"`
	OptimizeForWiiUHardware     bool `toml:"optimize_for_wiiu_hardware"`
	EnableCacheOptimizations    bool `toml:"enable_cache_optimizations"`

	TreatUnknownInstructionsAsNop bool   `toml:"treat_unknown_instructions_as_nop"`
	GenerateDebugInfo             bool   `toml:"generate_debug_info"`
	MaxFunctionSize               uint32 `toml:"max_function_size"`

	Functions           []ManualFunction     `toml:"functions"`
	InvalidInstructions []InvalidInstruction `toml:"invalid_instructions"`

	Gqr0LoadAddress  uint32 `toml:"gqr_0_load_address"`
	Gqr1LoadAddress  uint32 `toml:"gqr_1_load_address"`
	Gqr2LoadAddress  uint32 `toml:"gqr_2_load_address"`
	Gqr3LoadAddress  uint32 `toml:"gqr_3_load_address"`
	Gqr4LoadAddress  uint32 `toml:"gqr_4_load_address"`
	Gqr5LoadAddress  uint32 `toml:"gqr_5_load_address"`
	Gqr6LoadAddress  uint32 `toml:"gqr_6_load_address"`
	Gqr7LoadAddress  uint32 `toml:"gqr_7_load_address"`
	Gqr0StoreAddress uint32 `toml:"gqr_0_store_address"`
	Gqr1StoreAddress uint32 `toml:"gqr_1_store_address"`
	Gqr2StoreAddress uint32 `toml:"gqr_2_store_address"`
	Gqr3StoreAddress uint32 `toml:"gqr_3_store_address"`
	Gqr4StoreAddress uint32 `toml:"gqr_4_store_address"`
	Gqr5StoreAddress uint32 `toml:"gqr_5_store_address"`
	Gqr6StoreAddress uint32 `toml:"gqr_6_store_address"`
	Gqr7StoreAddress uint32 `toml:"gqr_7_store_address"`
}

func (m mainSection) gqrLoad() [8]uint32 {
	return [8]uint32{
		m.Gqr0LoadAddress, m.Gqr1LoadAddress, m.Gqr2LoadAddress, m.Gqr3LoadAddress,
		m.Gqr4LoadAddress, m.Gqr5LoadAddress, m.Gqr6LoadAddress, m.Gqr7LoadAddress,
	}
}

func (m mainSection) gqrStore() [8]uint32 {
	return [8]uint32{
		m.Gqr0StoreAddress, m.Gqr1StoreAddress, m.Gqr2StoreAddress, m.Gqr3StoreAddress,
		m.Gqr4StoreAddress, m.Gqr5StoreAddress, m.Gqr6StoreAddress, m.Gqr7StoreAddress,
	}
}

type document struct {
	Main       mainSection  `toml:"main"`
	MidAsmHook []MidAsmHook `toml:"midasm_hook"`
}

// Config is the fully resolved recompiler configuration for one
// recompilation run, along with the switch tables loaded from its
// sidecar file.
type Config struct {
	DirectoryPath       string
	FilePath            string
	OutDirectoryPath    string
	SwitchTableFilePath string

	SkipLR             bool
	SkipMSR            bool
	CtrAsLocal         bool
	XerAsLocal         bool
	ReservedAsLocal    bool
	CrAsLocal          bool
	NonArgumentAsLocal bool
	NonVolatileAsLocal bool

	RestGprLr14Address uint32
	SaveGprLr14Address uint32
	RestFpr14Address   uint32
	SaveFpr14Address   uint32
	RestVmx14Address   uint32
	SaveVmx14Address   uint32
	RestVmx64Address   uint32
	SaveVmx64Address   uint32
	LongJmpAddress     uint32
	SetJmpAddress      uint32

	GQRLoadFunctions  [8]uint32
	GQRStoreFunctions [8]uint32

	Functions           map[uint32]uint32
	InvalidInstructions map[uint32]uint32
	MidAsmHooks         map[uint32]MidAsmHook

	Mem1Base uint32
	Mem1Size uint32
	Mem2Base uint32
	Mem2Size uint32

	GeneratePairedSingleSupport bool
	GenerateGQRSupport          bool
	OptimizeForWiiUHardware     bool
	EnableCacheOptimizations    bool

	TreatUnknownInstructionsAsNop bool
	GenerateDebugInfo             bool
	MaxFunctionSize               uint32

	SwitchTables map[uint32]SwitchTable
}

// Defaults returns a Config carrying every default value the original
// field initializers declared, before a TOML document is applied on top.
func Defaults() Config {
	return Config{
		Functions:           make(map[uint32]uint32),
		InvalidInstructions: make(map[uint32]uint32),
		MidAsmHooks:         make(map[uint32]MidAsmHook),
		SwitchTables:        make(map[uint32]SwitchTable),

		Mem1Base: 0x00800000,
		Mem1Size: 0x01800000,
		Mem2Base: 0x10000000,
		Mem2Size: 0x20000000,

		GeneratePairedSingleSupport: true,
		GenerateGQRSupport:          true,
		OptimizeForWiiUHardware:     true,

		MaxFunctionSize: 0x10000,
	}
}

// Load reads and decodes the recompiler config at configFilePath, along
// with its switch-table sidecar if one is named.
func Load(configFilePath string) (Config, error) {
	cfg := Defaults()
	cfg.DirectoryPath = filepath.Dir(configFilePath) + string(filepath.Separator)

	raw, err := os.ReadFile(configFilePath)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %q", configFilePath)
	}

	var doc document
	doc.Main.GeneratePairedSingleSupport = cfg.GeneratePairedSingleSupport
	doc.Main.GenerateGQRSupport = cfg.GenerateGQRSupport
	doc.Main.OptimizeForWiiUHardware = cfg.OptimizeForWiiUHardware
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %q", configFilePath)
	}

	m := doc.Main
	cfg.FilePath = m.FilePath
	cfg.OutDirectoryPath = m.OutDirectoryPath
	cfg.SwitchTableFilePath = m.SwitchTableFilePath

	cfg.SkipLR = m.SkipLR
	cfg.SkipMSR = m.SkipMSR
	cfg.CtrAsLocal = m.CtrAsLocal
	cfg.XerAsLocal = m.XerAsLocal
	cfg.ReservedAsLocal = m.ReservedAsLocal
	cfg.CrAsLocal = m.CrAsLocal
	cfg.NonArgumentAsLocal = m.NonArgumentAsLocal
	cfg.NonVolatileAsLocal = m.NonVolatileAsLocal

	cfg.RestGprLr14Address = m.RestGprLr14Address
	cfg.SaveGprLr14Address = m.SaveGprLr14Address
	cfg.RestFpr14Address = m.RestFpr14Address
	cfg.SaveFpr14Address = m.SaveFpr14Address
	cfg.RestVmx14Address = m.RestVmx14Address
	cfg.SaveVmx14Address = m.SaveVmx14Address
	cfg.RestVmx64Address = m.RestVmx64Address
	cfg.SaveVmx64Address = m.SaveVmx64Address
	cfg.LongJmpAddress = m.LongJmpAddress
	cfg.SetJmpAddress = m.SetJmpAddress

	cfg.GQRLoadFunctions = m.gqrLoad()
	cfg.GQRStoreFunctions = m.gqrStore()

	if m.Mem1Base != 0 {
		cfg.Mem1Base = m.Mem1Base
	}
	if m.Mem1Size != 0 {
		cfg.Mem1Size = m.Mem1Size
	}
	if m.Mem2Base != 0 {
		cfg.Mem2Base = m.Mem2Base
	}
	if m.Mem2Size != 0 {
		cfg.Mem2Size = m.Mem2Size
	}

	cfg.GeneratePairedSingleSupport = m.GeneratePairedSingleSupport
	cfg.GenerateGQRSupport = m.GenerateGQRSupport
	cfg.OptimizeForWiiUHardware = m.OptimizeForWiiUHardware
	cfg.EnableCacheOptimizations = m.EnableCacheOptimizations

	cfg.TreatUnknownInstructionsAsNop = m.TreatUnknownInstructionsAsNop
	cfg.GenerateDebugInfo = m.GenerateDebugInfo
	if m.MaxFunctionSize != 0 {
		cfg.MaxFunctionSize = m.MaxFunctionSize
	}

	for _, fn := range m.Functions {
		cfg.Functions[fn.Address] = fn.Size
	}
	for _, inv := range m.InvalidInstructions {
		cfg.InvalidInstructions[inv.Data] = inv.Size
	}

	for _, hook := range doc.MidAsmHook {
		validateMidAsmHook(hook)
		cfg.MidAsmHooks[hook.Address] = hook
	}

	if cfg.RestGprLr14Address == 0 {
		log.Warn("__restgprlr_14 address is unspecified")
	}
	if cfg.SaveGprLr14Address == 0 {
		log.Warn("__savegprlr_14 address is unspecified")
	}
	if cfg.RestFpr14Address == 0 {
		log.Warn("__restfpr_14 address is unspecified")
	}
	if cfg.SaveFpr14Address == 0 {
		log.Warn("__savefpr_14 address is unspecified")
	}

	if cfg.SwitchTableFilePath != "" {
		tables, err := loadSwitchTables(filepath.Join(cfg.DirectoryPath, cfg.SwitchTableFilePath))
		if err != nil {
			log.Warnf("could not load switch table file %q: %v", cfg.SwitchTableFilePath, err)
		} else {
			cfg.SwitchTables = tables
		}
	}

	return cfg, nil
}

func validateMidAsmHook(hook MidAsmHook) {
	if (hook.Return && hook.JumpAddress != 0) ||
		(hook.ReturnOnTrue && hook.JumpAddressOnTrue != 0) ||
		(hook.ReturnOnFalse && hook.JumpAddressOnFalse != 0) {
		log.Warnf("%s: can't return and jump at the same time", hook.Name)
	}

	if (hook.Return || hook.JumpAddress != 0) &&
		(hook.ReturnOnFalse || hook.ReturnOnTrue || hook.JumpAddressOnFalse != 0 || hook.JumpAddressOnTrue != 0) {
		log.Warnf("%s: can't mix direct and conditional return/jump", hook.Name)
	}
}

// GetMemoryBase returns the lower of the two configured memory region
// bases.
func (c Config) GetMemoryBase() uint32 {
	if c.Mem1Base < c.Mem2Base {
		return c.Mem1Base
	}
	return c.Mem2Base
}

// IsValidAddress reports whether addr falls within either configured
// memory region.
func (c Config) IsValidAddress(addr uint32) bool {
	inMem1 := addr >= c.Mem1Base && addr < c.Mem1Base+c.Mem1Size
	inMem2 := addr >= c.Mem2Base && addr < c.Mem2Base+c.Mem2Size
	return inMem1 || inMem2
}

// AddressRegion names which configured memory region addr falls in, for
// warning messages.
func (c Config) AddressRegion(addr uint32) string {
	switch {
	case addr >= c.Mem1Base && addr < c.Mem1Base+c.Mem1Size:
		return "MEM1"
	case addr >= c.Mem2Base && addr < c.Mem2Base+c.Mem2Size:
		return "MEM2"
	default:
		return "UNKNOWN"
	}
}

// Validate checks the configuration for the errors and warnings the
// original loader reports, returning an error only for the conditions
// that were fatal there (missing paths, missing input file/output dir,
// a degenerate memory layout).
func (c Config) Validate() error {
	if c.FilePath == "" {
		return errors.New("file_path is required")
	}
	if c.OutDirectoryPath == "" {
		return errors.New("out_directory_path is required")
	}
	if _, err := os.Stat(filepath.Join(c.DirectoryPath, c.FilePath)); err != nil {
		return errors.Wrapf(err, "input file %q does not exist", filepath.Join(c.DirectoryPath, c.FilePath))
	}
	if _, err := os.Stat(filepath.Join(c.DirectoryPath, c.OutDirectoryPath)); err != nil {
		return errors.Wrapf(err, "output directory %q does not exist", filepath.Join(c.DirectoryPath, c.OutDirectoryPath))
	}
	if c.Mem1Size == 0 || c.Mem2Size == 0 {
		return errors.New("invalid memory layout configuration")
	}

	warnIfOutside := func(addr uint32, name string) {
		if addr != 0 && !c.IsValidAddress(addr) {
			log.Warnf("%s address 0x%X is outside valid memory ranges", name, addr)
		}
	}

	warnIfOutside(c.RestGprLr14Address, "__restgprlr_14")
	warnIfOutside(c.SaveGprLr14Address, "__savegprlr_14")
	warnIfOutside(c.RestFpr14Address, "__restfpr_14")
	warnIfOutside(c.SaveFpr14Address, "__savefpr_14")
	warnIfOutside(c.RestVmx14Address, "__restvmx_14")
	warnIfOutside(c.SaveVmx14Address, "__savevmx_14")
	warnIfOutside(c.LongJmpAddress, "longjmp")
	warnIfOutside(c.SetJmpAddress, "setjmp")

	for i := 0; i < 8; i++ {
		warnIfOutside(c.GQRLoadFunctions[i], "gqr_"+strconv.Itoa(i)+"_load")
		warnIfOutside(c.GQRStoreFunctions[i], "gqr_"+strconv.Itoa(i)+"_store")
	}

	for addr, size := range c.Functions {
		if !c.IsValidAddress(addr) {
			log.Warnf("manual function at 0x%X is outside valid memory ranges", addr)
		}
		if size == 0 || size > c.MaxFunctionSize {
			log.Warnf("manual function at 0x%X has invalid size 0x%X", addr, size)
		}
	}

	return nil
}
