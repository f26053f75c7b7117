package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/ApfelTeeSaft/RebrewU/internal/config"
	"github.com/ApfelTeeSaft/RebrewU/pkg/recomp"
	"github.com/ApfelTeeSaft/RebrewU/pkg/rpx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var recompileCmd = &cobra.Command{
	Use:   "recompile <config.toml> | <test-dir> <output-dir>",
	Short: "Recompile one RPX image, or batch-test every config under a directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(args[0])
		if err != nil {
			return errors.Wrapf(err, "stat %q", args[0])
		}

		if info.IsDir() {
			if len(args) != 2 {
				return errors.New("batch test mode requires <test-dir> <output-dir>")
			}
			return runBatch(args[0], args[1])
		}

		return runSingle(args[0])
	},
}

func runSingle(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrapf(err, "loading config %q", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	return recompileOne(cfg)
}

func recompileOne(cfg config.Config) error {
	inputPath := filepath.Join(cfg.DirectoryPath, cfg.FilePath)
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "reading %q", inputPath)
	}

	img, err := rpx.Load(data)
	if err != nil {
		return errors.Wrapf(err, "%q appears to not be a valid RPX", inputPath)
	}
	img.RenameEntrySymbol()

	fns := recomp.Discover(img, &cfg)
	log.Infof("discovered %d functions", len(fns))

	outDir := filepath.Join(cfg.DirectoryPath, cfg.OutDirectoryPath)
	r := recomp.NewRecompiler(img, &cfg)
	return r.RecompileAll(outDir, fns)
}

// runBatch walks testDir for *.toml configs and recompiles each into a
// like-named subdirectory of outputDir, the directory-argument dispatch
// RebrewRecomp's original entrypoint performed for its self-test corpus.
func runBatch(testDir, outputDir string) error {
	entries, err := os.ReadDir(testDir)
	if err != nil {
		return errors.Wrapf(err, "reading test directory %q", testDir)
	}

	var failures int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		configPath := filepath.Join(testDir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), ".toml")
		caseOutDir := filepath.Join(outputDir, name)

		if err := os.MkdirAll(caseOutDir, 0o755); err != nil {
			log.Errorf("%s: creating output directory: %v", name, err)
			failures++
			continue
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			log.Errorf("%s: loading config: %v", name, err)
			failures++
			continue
		}
		cfg.FilePath = filepath.Join(cfg.DirectoryPath, cfg.FilePath)
		cfg.OutDirectoryPath = caseOutDir
		cfg.DirectoryPath = ""

		if err := cfg.Validate(); err != nil {
			log.Errorf("%s: invalid config: %v", name, err)
			failures++
			continue
		}

		log.Infof("recompiling test case %q", name)
		if err := recompileOne(cfg); err != nil {
			log.Errorf("%s: %v", name, err)
			failures++
			continue
		}
	}

	if failures > 0 {
		return errors.Errorf("%d test case(s) failed", failures)
	}
	return nil
}
