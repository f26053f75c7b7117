package config

import (
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// SwitchTable is one manually authored switch-table entry: the register
// driving the dispatch and the ordered list of case target addresses,
// keyed by the dispatch site's base address.
type SwitchTable struct {
	R       uint32   `toml:"r"`
	Default uint32   `toml:"default"`
	Labels  []uint32 `toml:"labels"`
}

type switchTableEntry struct {
	Base    uint32   `toml:"base"`
	R       uint32   `toml:"r"`
	Default uint32   `toml:"default"`
	Labels  []uint32 `toml:"labels"`
}

type switchDocument struct {
	Switch []switchTableEntry `toml:"switch"`
}

// MarshalSwitchTables renders the given tables (keyed by dispatch base
// address) as a `[[switch]]` TOML document with a descriptive header
// comment, the format emitted by the analyzer tool and consumed by Load.
func MarshalSwitchTables(tables map[uint32]SwitchTable) ([]byte, error) {
	bases := make([]uint32, 0, len(tables))
	for base := range tables {
		bases = append(bases, base)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })

	doc := switchDocument{Switch: make([]switchTableEntry, 0, len(tables))}
	for _, base := range bases {
		t := tables[base]
		doc.Switch = append(doc.Switch, switchTableEntry{Base: base, R: t.R, Default: t.Default, Labels: t.Labels})
	}

	body, err := toml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling switch table document")
	}

	header := "# Recognized jump-table dispatch sites.\n" +
		"# Each [[switch]] entry names the dispatch site's base address, the\n" +
		"# register driving it, its default (out-of-range) target, and the\n" +
		"# ordered list of case target addresses.\n\n"
	return append([]byte(header), body...), nil
}

func loadSwitchTables(path string) (map[uint32]SwitchTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading switch table file")
	}

	var doc switchDocument
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing switch table file")
	}

	tables := make(map[uint32]SwitchTable, len(doc.Switch))
	for _, entry := range doc.Switch {
		tables[entry.Base] = SwitchTable{R: entry.R, Default: entry.Default, Labels: entry.Labels}
	}
	return tables, nil
}
