package nn

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// ErrInvalidLengths reports sequence lengths that do not fit the batch.
var ErrInvalidLengths = errors.New("invalid sequence lengths")

// PackedSequence holds a variable-length batch without its padding.
//
// Data is time-major: the rows of step t are the BatchSizes[t] sequences
// still running at t, in order of decreasing length. Padding positions of the
// original batch are not present, so a recurrence over Data never sees them.
type PackedSequence[B tensor.Backend] struct {
	Data            *tensor.Tensor[float32, B] // [Σ BatchSizes, features]
	BatchSizes      []int                      // Non-increasing, one per time step
	SortedIndices   []int                      // Sorted position -> original batch index
	UnsortedIndices []int                      // Original batch index -> sorted position
}

// MaxLen returns the number of time steps.
func (p *PackedSequence[B]) MaxLen() int {
	return len(p.BatchSizes)
}

// BatchSize returns the number of sequences.
func (p *PackedSequence[B]) BatchSize() int {
	return p.BatchSizes[0]
}

// Lengths returns the sequence lengths in original batch order.
func (p *PackedSequence[B]) Lengths() []int {
	lengths := make([]int, p.BatchSize())
	for _, bs := range p.BatchSizes {
		for i := 0; i < bs; i++ {
			lengths[p.SortedIndices[i]]++
		}
	}
	return lengths
}

// Offsets returns the first Data row of every time step.
func (p *PackedSequence[B]) Offsets() []int {
	offsets := make([]int, len(p.BatchSizes))
	at := 0
	for t, bs := range p.BatchSizes {
		offsets[t] = at
		at += bs
	}
	return offsets
}

// WithData returns a packed sequence with the same layout over new data.
func (p *PackedSequence[B]) WithData(data *tensor.Tensor[float32, B]) *PackedSequence[B] {
	return &PackedSequence[B]{
		Data:            data,
		BatchSizes:      p.BatchSizes,
		SortedIndices:   p.SortedIndices,
		UnsortedIndices: p.UnsortedIndices,
	}
}

// ValidateLengths checks that there is one length per batch row and every
// length is in [1, maxLen].
func ValidateLengths(lengths []int, batch, maxLen int) error {
	if len(lengths) != batch {
		return fmt.Errorf("%w: got %d lengths for batch of %d", ErrInvalidLengths, len(lengths), batch)
	}
	for i, n := range lengths {
		if n < 1 || n > maxLen {
			return fmt.Errorf("%w: length[%d] = %d, want 1..%d", ErrInvalidLengths, i, n, maxLen)
		}
	}
	return nil
}

// Pack removes the padding from x [batch, maxLen, features] given each
// sequence's length. Lengths need not be sorted.
func Pack[B tensor.Backend](x *tensor.Tensor[float32, B], lengths []int) (*PackedSequence[B], error) {
	shape := x.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("pack: expected [batch, time, features], got %v", shape)
	}
	if err := ValidateLengths(lengths, shape[0], shape[1]); err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}

	sorted := make([]int, len(lengths))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return lengths[sorted[a]] > lengths[sorted[b]]
	})
	unsorted := make([]int, len(sorted))
	for pos, idx := range sorted {
		unsorted[idx] = pos
	}

	maxLen := lengths[sorted[0]]
	batchSizes := make([]int, maxLen)
	for t := range batchSizes {
		for _, idx := range sorted {
			if lengths[idx] > t {
				batchSizes[t]++
			}
		}
	}

	xs := x
	if !isIdentity(sorted) {
		xs = x.IndexSelect(0, sorted)
	}

	features := shape[2]
	steps := make([]*tensor.Tensor[float32, B], maxLen)
	for t, bs := range batchSizes {
		steps[t] = xs.Narrow(1, t, 1).Narrow(0, 0, bs).Reshape(bs, features)
	}

	return &PackedSequence[B]{
		Data:            tensor.Cat(steps, 0),
		BatchSizes:      batchSizes,
		SortedIndices:   sorted,
		UnsortedIndices: unsorted,
	}, nil
}

// Unpack pads a packed sequence back to [batch, time, features] in the
// original batch order and also returns the lengths. Padding rows are zero.
// time is totalLength, or the longest sequence when totalLength is 0.
func Unpack[B tensor.Backend](p *PackedSequence[B], totalLength int, backend B) (*tensor.Tensor[float32, B], []int) {
	batch := p.BatchSize()
	features := p.Data.Shape()[1]
	offsets := p.Offsets()
	if totalLength == 0 {
		totalLength = p.MaxLen()
	}
	if totalLength < p.MaxLen() {
		panic(fmt.Sprintf("Unpack: total length %d shorter than longest sequence %d", totalLength, p.MaxLen()))
	}

	steps := make([]*tensor.Tensor[float32, B], len(p.BatchSizes), totalLength)
	for t, bs := range p.BatchSizes {
		step := p.Data.Narrow(0, offsets[t], bs)
		if bs < batch {
			pad := tensor.Zeros[float32](tensor.Shape{batch - bs, features}, backend)
			step = tensor.Cat([]*tensor.Tensor[float32, B]{step, pad}, 0)
		}
		steps[t] = step.Unsqueeze(1)
	}
	if extra := totalLength - p.MaxLen(); extra > 0 {
		steps = append(steps, tensor.Zeros[float32](tensor.Shape{batch, extra, features}, backend))
	}

	out := tensor.Cat(steps, 1)
	if !isIdentity(p.UnsortedIndices) {
		out = out.IndexSelect(0, p.UnsortedIndices)
	}
	return out, p.Lengths()
}

func isIdentity(perm []int) bool {
	for i, v := range perm {
		if v != i {
			return false
		}
	}
	return true
}

// FullLengths returns lengths for a batch without padding.
func FullLengths(batch, maxLen int) []int {
	return slices.Repeat([]int{maxLen}, batch)
}
