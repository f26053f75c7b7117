package ppc

import "testing"

func TestDecodeAdd(t *testing.T) {
	insn := Decode(0x7C031A14, 0x1000) // add r0, r3, r3
	if !insn.Valid() {
		t.Fatalf("expected valid decode")
	}
	if insn.ID() != InstAdd {
		t.Fatalf("expected InstAdd, got %v", insn.ID())
	}
	if insn.Operands[0] != 0 || insn.Operands[1] != 3 || insn.Operands[2] != 3 {
		t.Fatalf("unexpected operands: %v", insn.Operands)
	}
}

func TestDecodeBranchRelative(t *testing.T) {
	// b +0x10 from address 0x1000
	insn := Decode(0x48000010, 0x1000)
	if insn.ID() != InstB {
		t.Fatalf("expected InstB, got %v", insn.ID())
	}
	if got := BranchTarget(insn); got != 0x1010 {
		t.Fatalf("expected target 0x1010, got 0x%X", got)
	}
}

func TestDecodeBranchAbsolute(t *testing.T) {
	insn := Decode(0x48000002, 0x1000) // ba 0
	if insn.ID() != InstBa {
		t.Fatalf("expected InstBa, got %v", insn.ID())
	}
	if got := BranchTarget(insn); got != 0 {
		t.Fatalf("expected absolute target 0, got 0x%X", got)
	}
}

func TestDecodeUnknown(t *testing.T) {
	insn := Decode(0xFFFFFFFF, 0)
	if insn.Valid() {
		t.Fatalf("expected invalid decode for unmapped word")
	}
	if insn.ID() != InstInvalid {
		t.Fatalf("expected InstInvalid")
	}
}

func TestClassificationPredicates(t *testing.T) {
	lwz := Decode(0x80010008, 0x2000)
	if !IsLoad(lwz) {
		t.Fatalf("expected lwz to classify as load")
	}
	if IsStore(lwz) {
		t.Fatalf("lwz must not classify as store")
	}

	stw := Decode(0x90010008, 0x2000)
	if !IsStore(stw) {
		t.Fatalf("expected stw to classify as store")
	}

	psAdd := Decode(0x1000002A, 0x2000)
	if !IsPairedSingle(psAdd) || !RequiresSpecialHandling(psAdd) {
		t.Fatalf("expected ps_add to require special handling")
	}

	blr := Decode(0x4E800020, 0x2000)
	if !IsBranch(blr) || !IsConditionalBranch(blr) {
		t.Fatalf("blr decodes as bclr with always-branch BO")
	}
}

func TestSignExtendNegativeBranch(t *testing.T) {
	// b -4 encoded relative to address 0x2000 -> target 0x1FFC
	insn := Decode(0x4BFFFFFC, 0x2000)
	if insn.ID() != InstB {
		t.Fatalf("expected InstB, got %v", insn.ID())
	}
	if got := BranchTarget(insn); got != 0x1FFC {
		t.Fatalf("expected target 0x1FFC, got 0x%X", got)
	}
}
