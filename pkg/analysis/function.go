package analysis

import (
	"encoding/binary"
	"sort"

	"github.com/ApfelTeeSaft/RebrewU/pkg/ppc"
)

// Function is one analyzed function: its address range and the basic
// blocks discovered by walking its control flow.
type Function struct {
	Base   uint64
	Size   uint64
	Blocks []Block
}

// Contains reports whether addr falls within the function's bounds.
func (f Function) Contains(addr uint64) bool { return addr >= f.Base && addr < f.Base+f.Size }

// EndAddress returns the function's exclusive end address.
func (f Function) EndAddress() uint64 { return f.Base + f.Size }

// HasMultipleEntryPoints reports whether analysis discovered more than
// one basic block.
func (f Function) HasMultipleEntryPoints() bool { return len(f.Blocks) > 1 }

// SearchBlock returns the index of the block containing the given
// absolute address, or -1 if none matches. A freshly emplaced zero-size
// block ("fresh block", not yet walked) matches only its exact base
// address, matching the original's two-branch comparison.
func (f Function) SearchBlock(address uint64) int {
	if address < f.Base {
		return -1
	}
	for i, block := range f.Blocks {
		begin := f.Base + block.Base
		end := begin + block.Size
		if begin != end {
			if address >= begin && address < end {
				return i
			}
		} else if address == begin {
			return i
		}
	}
	return -1
}

// tailCallWord is the second instruction of the original loader's
// recognized "shifted pointer" tail-call prologue: the bytes 04 00 00 48,
// read big-endian, used as a sentinel by the original toolchain to mark
// synthetic 8-byte stub functions.
const tailCallWord = 0x04000048

// Analyze walks code starting at base, reconstructing the function's basic
// blocks by an iterative worklist traversal — mirroring Function::Analyze
// instruction for instruction, including its fallthrough/projection
// bookkeeping and discontinuity truncation pass.
func Analyze(code []byte, base uint64) Function {
	fn := Function{Base: base}

	if len(code) >= 8 && binary.BigEndian.Uint32(code[4:8]) == tailCallWord {
		fn.Size = 8
		return fn
	}

	blocks := make([]Block, 0, 8)
	blocks = append(blocks, newBlock(0, 0))

	wordAt := func(index int) uint32 {
		off := index * 4
		if off+4 > len(code) {
			return 0
		}
		return binary.BigEndian.Uint32(code[off : off+4])
	}
	numWords := len(code) / 4

	stack := make([]int, 0, 32)
	stack = append(stack, 0)

	dataIdx := 0
	restoreData := func() {
		if len(stack) > 0 {
			top := blocks[stack[len(stack)-1]]
			dataIdx = int((top.Base+top.Size)/4) - 1
		}
	}

	for ; dataIdx <= numWords; dataIdx++ {
		if len(stack) == 0 {
			break
		}

		addr := base + uint64(dataIdx)*4
		curIdx := stack[len(stack)-1]
		curBlock := &blocks[curIdx]

		instr := wordAt(dataIdx)
		op := ppc.PrimaryOpcode(instr)
		linked := ppc.IsLinkBit(instr)
		insn := ppc.Decode(instr, uint32(addr))

		if curBlock.ProjectedSize != NoProjection && curBlock.Size >= curBlock.ProjectedSize {
			stack = stack[:len(stack)-1]
			restoreData()
			continue
		}

		curBlock.Size += 4

		switch {
		case op == ppc.OpBC: // conditional branch
			if linked {
				continue // conditional call, nothing special
			}

			curBlock.ProjectedSize = NoProjection
			stack = stack[:len(stack)-1]

			disp := int64(ppc.ConditionalBranchDisplacement(instr))
			branchDest := uint64(int64(addr) + disp)

			lBase := (addr - base) + 4
			rBase := uint64(int64(addr) + disp - int64(base))

			lBlock := fn.searchBlockIn(blocks, base+lBase)
			if lBlock == -1 {
				blocks = append(blocks, newProjectedBlock(lBase, 0, rBase-lBase))
				lBlock = len(blocks) - 1
				stack = append(stack, lBlock)
			}

			rBlock := fn.searchBlockIn(blocks, base+rBase)
			if rBlock == -1 {
				blocks = append(blocks, newBlock(branchDest-base, 0))
				rBlock = len(blocks) - 1
				stack = append(stack, rBlock)
			}

			restoreData()

		case op == ppc.OpB || instr == 0 ||
			(op == ppc.OpCTR && (ppc.ExtendedOpcode(instr) == 16 || ppc.ExtendedOpcode(instr) == 528)):
			// b, blr, end padding
			if linked {
				break
			}

			stack = stack[:len(stack)-1]

			if op == ppc.OpB {
				disp := int64(ppc.UnconditionalBranchDisplacement(instr))
				branchDest := uint64(int64(addr) + disp)
				branchBase := uint64(int64(branchDest) - int64(base))

				if int64(branchDest) >= int64(base) {
					// branches before base are just tail calls, nothing to chase
					branchBlock := fn.searchBlockIn(blocks, branchDest)

					isContinuous := branchBase == curBlock.Base+curBlock.Size
					sizeProjection := uint64(NoProjection)
					if curBlock.ProjectedSize != NoProjection && isContinuous {
						sizeProjection = curBlock.ProjectedSize - curBlock.Size
					}

					if branchBlock == -1 {
						blocks = append(blocks, newProjectedBlock(branchBase, 0, sizeProjection))
						stack = append(stack, len(blocks)-1)
					}
				}
			} else if op == ppc.OpCTR {
				conditional := ppc.BranchOptions(instr)&0x10 == 0
				if conditional {
					// searchBlockIn rejects anything below base, and lBase is
					// already base-relative, so this lookup always misses and a
					// synthetic fall-through block is always pushed.
					lBase := (addr - base) + 4
					lBlock := fn.searchBlockIn(blocks, lBase)
					if lBlock == -1 {
						blocks = append(blocks, newBlock(lBase, 0))
						stack = append(stack, len(blocks)-1)
					}
				}
			}

			restoreData()

		case !insn.Valid():
			stack = stack[:len(stack)-1]
			restoreData()
		}
	}

	if len(blocks) > 1 {
		sort.Slice(blocks, func(i, j int) bool { return blocks[i].Base < blocks[j].Base })

		discontinuity := -1
		for i := 0; i < len(blocks)-1; i++ {
			if blocks[i].Base+blocks[i].Size >= blocks[i+1].Base {
				continue
			}
			discontinuity = i + 1
			break
		}
		if discontinuity != -1 {
			blocks = blocks[:discontinuity]
		}
	}

	var size uint64
	for _, b := range blocks {
		if end := b.Base + b.Size; end > size {
			size = end
		}
	}

	fn.Size = size
	fn.Blocks = blocks
	return fn
}

// searchBlockIn is SearchBlock against a still-growing blocks slice, used
// mid-analysis before fn.Blocks has been assigned.
func (f Function) searchBlockIn(blocks []Block, address uint64) int {
	if address < f.Base {
		return -1
	}
	for i, block := range blocks {
		begin := f.Base + block.Base
		end := begin + block.Size
		if begin != end {
			if address >= begin && address < end {
				return i
			}
		} else if address == begin {
			return i
		}
	}
	return -1
}

// MergeOverlappingBlocks collapses overlapping or directly adjacent
// blocks into one, run after analysis as a cleanup pass.
func (f *Function) MergeOverlappingBlocks() {
	if len(f.Blocks) <= 1 {
		return
	}

	sort.Slice(f.Blocks, func(i, j int) bool { return f.Blocks[i].Base < f.Blocks[j].Base })

	merged := make([]Block, 0, len(f.Blocks))
	merged = append(merged, f.Blocks[0])

	for i := 1; i < len(f.Blocks); i++ {
		last := &merged[len(merged)-1]
		cur := f.Blocks[i]

		if cur.Base <= last.Base+last.Size {
			end := last.Base + last.Size
			if curEnd := cur.Base + cur.Size; curEnd > end {
				end = curEnd
			}
			last.Size = end - last.Base
		} else {
			merged = append(merged, cur)
		}
	}

	f.Blocks = merged
}

// Validate checks that the function has a sane bound and that its blocks
// are in range, ordered, and non-overlapping.
func (f Function) Validate() bool {
	if f.Base == 0 || f.Size == 0 || len(f.Blocks) == 0 {
		return false
	}

	for _, b := range f.Blocks {
		if b.Base >= f.Size || b.Base+b.Size > f.Size {
			return false
		}
	}

	for i := 1; i < len(f.Blocks); i++ {
		if f.Blocks[i].Base < f.Blocks[i-1].Base+f.Blocks[i-1].Size {
			return false
		}
	}

	return true
}
