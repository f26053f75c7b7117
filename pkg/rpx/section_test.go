package rpx

import "testing"

func TestSectionContains(t *testing.T) {
	s := Section{Base: 0x1000, Size: 0x100}
	if !s.Contains(0x1000) || !s.Contains(0x10FF) {
		t.Fatalf("expected bounds to be inclusive at the start and exclusive at the end")
	}
	if s.Contains(0x1100) || s.Contains(0x0FFF) {
		t.Fatalf("expected addresses outside the range to be rejected")
	}
}

func TestSectionClassification(t *testing.T) {
	code := Section{Flags: sectionFlagCode}
	if !code.IsCode() || code.IsData() || code.IsBSS() {
		t.Fatalf("expected a code-only section to classify as code alone")
	}

	data := Section{Flags: sectionFlagData}
	if data.IsCode() || !data.IsData() {
		t.Fatalf("expected a data-only section to classify as data alone")
	}

	bss := Section{Flags: sectionFlagBSS}
	if !bss.IsBSS() {
		t.Fatalf("expected SHT_NOBITS section to classify as BSS")
	}
}
