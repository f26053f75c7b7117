package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/ApfelTeeSaft/RebrewU/internal/config"
	"github.com/ApfelTeeSaft/RebrewU/pkg/jumptable"
	"github.com/ApfelTeeSaft/RebrewU/pkg/rpx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.rpx> <output.toml>",
	Short: "Scan an RPX image for jump-table dispatch sites and emit a switch-table sidecar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath, outputPath := args[0], args[1]

		data, err := os.ReadFile(inputPath)
		if err != nil {
			return errors.Wrapf(err, "reading %q", inputPath)
		}

		img, err := rpx.Load(data)
		if err != nil {
			return errors.Wrapf(err, "%q appears to not be a valid RPX", inputPath)
		}

		tables := make(map[uint32]config.SwitchTable)
		for _, sec := range img.CodeSections() {
			for _, t := range jumptable.Scan(sec.Data, sec.Base) {
				tables[t.Base] = config.SwitchTable{R: uint32(t.Reg), Default: t.Default, Labels: t.Labels}
			}
		}

		log.Infof("found %d jump-table dispatch sites", len(tables))

		out, err := config.MarshalSwitchTables(tables)
		if err != nil {
			return errors.Wrap(err, "marshaling switch table document")
		}
		if err := os.WriteFile(outputPath, out, 0o644); err != nil {
			return errors.Wrapf(err, "writing %q", outputPath)
		}

		log.Infof("wrote %s", outputPath)
		return nil
	},
}
