package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMarshalSwitchTablesRoundTrip(t *testing.T) {
	tables := map[uint32]SwitchTable{
		0x2000: {R: 3, Default: 0x2050, Labels: []uint32{0x2010, 0x2020, 0x2030}},
		0x1000: {R: 5, Default: 0x1030, Labels: []uint32{0x1010, 0x1020}},
	}

	body, err := MarshalSwitchTables(tables)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "switch.toml")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("writing switch table file: %v", err)
	}

	got, err := loadSwitchTables(path)
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if len(got) != len(tables) {
		t.Fatalf("expected %d tables, got %d", len(tables), len(got))
	}
	for base, want := range tables {
		entry, ok := got[base]
		if !ok {
			t.Fatalf("expected a table at 0x%X", base)
		}
		if entry.R != want.R || entry.Default != want.Default {
			t.Fatalf("table at 0x%X: got %+v, want %+v", base, entry, want)
		}
		if len(entry.Labels) != len(want.Labels) {
			t.Fatalf("table at 0x%X: expected %d labels, got %d", base, len(want.Labels), len(entry.Labels))
		}
		for i, label := range want.Labels {
			if entry.Labels[i] != label {
				t.Fatalf("table at 0x%X label %d: got 0x%X, want 0x%X", base, i, entry.Labels[i], label)
			}
		}
	}
}

func TestLoadSwitchTablesMissingFile(t *testing.T) {
	if _, err := loadSwitchTables(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error reading a missing switch table file")
	}
}

func TestLoadResolvesSwitchTableSidecar(t *testing.T) {
	dir := t.TempDir()
	tables := map[uint32]SwitchTable{
		0x3000: {R: 4, Default: 0x3040, Labels: []uint32{0x3010, 0x3020, 0x3030}},
	}
	body, err := MarshalSwitchTables(tables)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "switch.toml"), body, 0o644); err != nil {
		t.Fatalf("writing switch table sidecar: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "input.rpx"), []byte{0}, 0o644); err != nil {
		t.Fatalf("writing fixture input: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatalf("creating fixture out dir: %v", err)
	}

	configBody := `
[main]
file_path = "input.rpx"
out_directory_path = "out"
switch_table_file_path = "switch.toml"
`
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl, ok := cfg.SwitchTables[0x3000]
	if !ok {
		t.Fatalf("expected the sidecar's switch table to be loaded at 0x3000")
	}
	if tbl.R != 4 || tbl.Default != 0x3040 || len(tbl.Labels) != 3 {
		t.Fatalf("unexpected switch table contents: %+v", tbl)
	}
}
