package analysis

import "testing"

func TestAnalyzeStraightLineFunction(t *testing.T) {
	code := []byte{
		0x7C, 0x03, 0x1A, 0x14, // add r0, r3, r3
		0x60, 0x00, 0x00, 0x00, // nop
		0x4E, 0x80, 0x00, 0x20, // blr
	}
	fn := Analyze(code, 0x1000)

	if fn.Size != 12 {
		t.Fatalf("expected size 12, got %d", fn.Size)
	}
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected a single block for straight-line code, got %d", len(fn.Blocks))
	}
	if !fn.Validate() {
		t.Fatalf("expected a straight-line function to validate")
	}
}

func TestAnalyzeDetectsTailCallStub(t *testing.T) {
	code := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x04, 0x00, 0x00, 0x48, // tailCallWord sentinel
	}
	fn := Analyze(code, 0x2000)

	if fn.Size != 8 {
		t.Fatalf("expected an 8-byte tail-call stub, got size %d", fn.Size)
	}
	if len(fn.Blocks) != 0 {
		t.Fatalf("expected no walked blocks for a tail-call stub")
	}
}

func TestAnalyzeConditionalBranchSplitsBlocks(t *testing.T) {
	// bc (BO=12, branch if CR0[LT] set) skipping one instruction: the
	// fallthrough path runs the nop into the first blr, which is also the
	// taken-branch target.
	code := []byte{
		0x41, 0x80, 0x00, 0x08, // bc 12,0,+8  (branch over the next instruction)
		0x60, 0x00, 0x00, 0x00, // nop (fallthrough path)
		0x4E, 0x80, 0x00, 0x20, // blr (branch target, also reached by fallthrough)
		0x4E, 0x80, 0x00, 0x20, // blr (not reached)
	}
	fn := Analyze(code, 0x3000)

	if len(fn.Blocks) < 2 {
		t.Fatalf("expected the conditional branch to fork into at least 2 blocks, got %d", len(fn.Blocks))
	}
}

// TestAnalyzeConditionalBcctrAlwaysPushesFallthroughBlock guards the
// relative-vs-absolute addressing bug in the op == ppc.OpCTR conditional
// case: searchBlockIn rejects anything below base, so a bare base-relative
// lBase must always miss and a synthetic fall-through block must always be
// pushed, whether or not a block at that address already exists.
func TestAnalyzeConditionalBcctrAlwaysPushesFallthroughBlock(t *testing.T) {
	code := []byte{
		0x4D, 0x80, 0x04, 0x20, // bcctr 12,0 (BO&0x10==0, conditional)
		0x4E, 0x80, 0x00, 0x20, // blr (fallthrough path)
	}
	fn := Analyze(code, 0x4000)

	if len(fn.Blocks) < 2 {
		t.Fatalf("expected the conditional bcctr to push a synthetic fall-through block, got %d blocks", len(fn.Blocks))
	}
}

func TestFunctionContainsAndEndAddress(t *testing.T) {
	fn := Function{Base: 0x1000, Size: 0x20}
	if !fn.Contains(0x1000) || !fn.Contains(0x101F) {
		t.Fatalf("expected bounds to include start and last byte")
	}
	if fn.Contains(0x1020) {
		t.Fatalf("expected end address to be exclusive")
	}
	if fn.EndAddress() != 0x1020 {
		t.Fatalf("expected end address 0x1020, got 0x%X", fn.EndAddress())
	}
}

func TestSearchBlockExactAndRanged(t *testing.T) {
	fn := Function{
		Base: 0x1000,
		Blocks: []Block{
			newBlock(0, 0x10),
			newBlock(0x10, 0), // fresh zero-size block, matches only its exact base
		},
	}
	if idx := fn.SearchBlock(0x1005); idx != 0 {
		t.Fatalf("expected address within the ranged block to resolve to index 0, got %d", idx)
	}
	if idx := fn.SearchBlock(0x1010); idx != 1 {
		t.Fatalf("expected the fresh block's exact base to resolve to index 1, got %d", idx)
	}
	if idx := fn.SearchBlock(0x1011); idx != -1 {
		t.Fatalf("expected an address past the fresh block's base to miss, got %d", idx)
	}
	if idx := fn.SearchBlock(0x0FFF); idx != -1 {
		t.Fatalf("expected an address before the function base to miss, got %d", idx)
	}
}

func TestMergeOverlappingBlocks(t *testing.T) {
	fn := Function{
		Base: 0x1000,
		Blocks: []Block{
			newBlock(0x10, 0x10), // [0x10, 0x20)
			newBlock(0, 0x10),    // [0, 0x10) — adjacent to the block above
			newBlock(0x18, 0x20), // [0x18, 0x38) — overlaps the first block
		},
	}
	fn.MergeOverlappingBlocks()

	if len(fn.Blocks) != 1 {
		t.Fatalf("expected all three adjacent/overlapping blocks to merge into one, got %d", len(fn.Blocks))
	}
	if fn.Blocks[0].Base != 0 || fn.Blocks[0].End() != 0x38 {
		t.Fatalf("expected merged block [0, 0x38), got [0x%X, 0x%X)", fn.Blocks[0].Base, fn.Blocks[0].End())
	}
}

func TestValidateRejectsZeroBaseAndOverlaps(t *testing.T) {
	if (Function{Base: 0, Size: 0x10, Blocks: []Block{newBlock(0, 0x10)}}).Validate() {
		t.Fatalf("expected base address 0 to be rejected")
	}
	if (Function{Base: 0x1000, Size: 0, Blocks: []Block{newBlock(0, 0)}}).Validate() {
		t.Fatalf("expected zero size to be rejected")
	}

	overlapping := Function{
		Base: 0x1000,
		Size: 0x20,
		Blocks: []Block{
			newBlock(0, 0x10),
			newBlock(0x8, 0x10), // overlaps the previous block
		},
	}
	if overlapping.Validate() {
		t.Fatalf("expected overlapping blocks to fail validation")
	}
}
