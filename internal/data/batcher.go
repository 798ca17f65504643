package data

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Batch is a padded group of examples.
type Batch[B tensor.Backend] struct {
	Source  *tensor.Tensor[int32, B] // [B, S], <pad> past each length
	Lengths []int                    // Source lengths
	Target  *tensor.Tensor[int32, B] // [B, T], <sos> ... <eos> then <pad>
	Indices []int                    // Positions of the examples in the batcher
}

// Size returns the number of examples in the batch.
func (b Batch[B]) Size() int {
	return len(b.Lengths)
}

// DecoderInput returns Target without its last column, what the decoder is
// fed under teacher forcing.
func (b Batch[B]) DecoderInput() *tensor.Tensor[int32, B] {
	t := b.Target.Shape()[1]
	return b.Target.Narrow(1, 0, t-1)
}

// Gold returns Target without its first column, what the decoder predicts.
func (b Batch[B]) Gold() *tensor.Tensor[int32, B] {
	t := b.Target.Shape()[1]
	return b.Target.Narrow(1, 1, t-1)
}

// BatcherConfig controls batch formation.
type BatcherConfig struct {
	BatchSize int   // Examples per batch (default: 32)
	Shuffle   bool  // Reshuffle at every epoch
	Seed      int64 // Shuffle seed
	// SortByLength groups examples of similar source length, which keeps
	// padding low. Batch order is still shuffled when Shuffle is set.
	SortByLength bool
}

// Batcher cuts examples into padded batches.
type Batcher[B tensor.Backend] struct {
	examples []Example
	cfg      BatcherConfig
	rng      *rand.Rand
	backend  B
}

// NewBatcher creates a batcher over examples.
func NewBatcher[B tensor.Backend](examples []Example, cfg BatcherConfig, backend B) (*Batcher[B], error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	for i, ex := range examples {
		if len(ex.Source) == 0 || len(ex.Target) < 2 {
			return nil, fmt.Errorf("example %d: empty source or target", i)
		}
	}
	return &Batcher[B]{
		examples: examples,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // G404: reproducible shuffling
		backend:  backend,
	}, nil
}

// Len returns the number of examples.
func (b *Batcher[B]) Len() int {
	return len(b.examples)
}

// NumBatches returns the number of batches per epoch.
func (b *Batcher[B]) NumBatches() int {
	return (len(b.examples) + b.cfg.BatchSize - 1) / b.cfg.BatchSize
}

// Example returns the i-th example.
func (b *Batcher[B]) Example(i int) Example {
	return b.examples[i]
}

// Epoch returns one pass over the data. Every example appears in exactly
// one batch.
func (b *Batcher[B]) Epoch() []Batch[B] {
	order := make([]int, len(b.examples))
	for i := range order {
		order[i] = i
	}
	if b.cfg.Shuffle {
		b.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if b.cfg.SortByLength {
		sort.SliceStable(order, func(i, j int) bool {
			return len(b.examples[order[i]].Source) < len(b.examples[order[j]].Source)
		})
	}

	groups := make([][]int, 0, b.NumBatches())
	for start := 0; start < len(order); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(order))
		groups = append(groups, order[start:end])
	}
	if b.cfg.Shuffle && b.cfg.SortByLength {
		b.rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })
	}

	batches := make([]Batch[B], len(groups))
	for i, g := range groups {
		batches[i] = b.makeBatch(g)
	}
	return batches
}

func (b *Batcher[B]) makeBatch(indices []int) Batch[B] {
	srcLen, tgtLen := 0, 0
	for _, i := range indices {
		srcLen = max(srcLen, len(b.examples[i].Source))
		tgtLen = max(tgtLen, len(b.examples[i].Target))
	}

	// Fresh buffers are all <pad> because tokenizer.PadID is 0.
	n := len(indices)
	src := make([]int32, n*srcLen)
	tgt := make([]int32, n*tgtLen)
	lengths := make([]int, n)
	for row, i := range indices {
		ex := b.examples[i]
		copy(src[row*srcLen:], ex.Source)
		copy(tgt[row*tgtLen:], ex.Target)
		lengths[row] = len(ex.Source)
	}

	return Batch[B]{
		Source:  tensor.MustFromSlice(src, tensor.Shape{n, srcLen}, b.backend),
		Lengths: lengths,
		Target:  tensor.MustFromSlice(tgt, tensor.Shape{n, tgtLen}, b.backend),
		Indices: append([]int(nil), indices...),
	}
}
