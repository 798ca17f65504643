package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []int32
		want int
	}{
		{"both empty", nil, nil, 0},
		{"insert all", nil, []int32{4, 5}, 2},
		{"delete all", []int32{4, 5, 6}, nil, 3},
		{"equal", []int32{4, 5, 6}, []int32{4, 5, 6}, 0},
		{"substitution", []int32{4, 5, 6}, []int32{4, 9, 6}, 1},
		{"insertion", []int32{4, 6}, []int32{4, 5, 6}, 1},
		{"swap", []int32{4, 5}, []int32{5, 4}, 2},
		{"mixed", []int32{7, 4, 5, 6, 8}, []int32{4, 5, 9, 6}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, EditDistance(tt.b, tt.a), "symmetric")
		})
	}
}

func TestErrorRate(t *testing.T) {
	hyps := [][]int32{{4, 5, 6}, {7}}
	refs := [][]int32{{4, 5, 6}, {7, 8, 9}}
	assert.InDelta(t, 2.0/6.0, ErrorRate(hyps, refs), 1e-12)

	assert.Zero(t, ErrorRate(refs, refs))
	assert.Zero(t, ErrorRate(nil, nil))
	assert.Panics(t, func() { ErrorRate(hyps, refs[:1]) })
}
