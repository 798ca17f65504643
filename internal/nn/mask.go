package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// SequenceMask returns a [len(lengths), maxLen] bool mask that is true at
// positions s < lengths[b].
func SequenceMask[B tensor.Backend](lengths []int, maxLen int, backend B) *tensor.Tensor[bool, B] {
	mask := tensor.Zeros[bool](tensor.Shape{len(lengths), maxLen}, backend)
	data := mask.Data()
	for b, n := range lengths {
		if n < 0 || n > maxLen {
			panic(fmt.Sprintf("SequenceMask: length %d out of range [0, %d]", n, maxLen))
		}
		for s := 0; s < n; s++ {
			data[b*maxLen+s] = true
		}
	}
	return mask
}
