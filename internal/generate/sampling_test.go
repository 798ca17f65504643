package generate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler_Greedy(t *testing.T) {
	s := NewSampler(GreedyConfig())
	assert.True(t, s.Greedy())
	for range 10 {
		assert.Equal(t, int32(2), s.Sample([]float32{-1, 0, 1}, nil))
	}
}

func TestSampler_BannedIDs(t *testing.T) {
	s := NewSampler(GreedyConfig(), 0, 1)
	assert.Equal(t, int32(2), s.Sample([]float32{9, 8, 1, 0}, nil))

	// Banning everything falls back to the raw logits.
	all := NewSampler(GreedyConfig(), 0, 1)
	assert.Equal(t, int32(0), all.Sample([]float32{9, 8}, nil))
}

func TestSampler_DoesNotModifyLogits(t *testing.T) {
	logits := []float32{1, 2, 3}
	s := NewSampler(SamplingConfig{Temperature: 0.5, TopK: 2, RepeatPenalty: 2, Seed: 1}, 0)
	s.Sample(logits, []int32{2})
	assert.Equal(t, []float32{1, 2, 3}, logits)
}

func TestSampler_TopK(t *testing.T) {
	s := NewSampler(SamplingConfig{Temperature: 1, TopK: 2, Seed: 42})
	counts := map[int32]int{}
	for range 200 {
		counts[s.Sample([]float32{1, 2, 3, 4, 5}, nil)]++
	}
	assert.Zero(t, counts[0]+counts[1]+counts[2])
	assert.Equal(t, 200, counts[3]+counts[4])
}

func TestSampler_TopP(t *testing.T) {
	s := NewSampler(SamplingConfig{Temperature: 1, TopP: 0.5, Seed: 42})
	// Token 4 alone holds more than half of the mass.
	for range 50 {
		assert.Equal(t, int32(4), s.Sample([]float32{-10, -10, -10, 0, 5}, nil))
	}
}

func TestSampler_RepeatPenalty(t *testing.T) {
	s := NewSampler(SamplingConfig{RepeatPenalty: 4})
	// 3/4 < 2, so the repeated token loses the argmax.
	assert.Equal(t, int32(1), s.Sample([]float32{0, 2, 3}, []int32{2}))

	windowed := NewSampler(SamplingConfig{RepeatPenalty: 4, RepeatWindow: 1})
	assert.Equal(t, int32(2), windowed.Sample([]float32{0, 2, 3}, []int32{2, 1}))
}

func TestSampler_DeterministicWithSeed(t *testing.T) {
	cfg := SamplingConfig{Temperature: 1, Seed: 7}
	a, b := NewSampler(cfg), NewSampler(cfg)
	logits := []float32{0.1, 0.2, 0.3, 0.4}
	for range 20 {
		assert.Equal(t, a.Sample(logits, nil), b.Sample(logits, nil))
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{0, 0, float32(math.Inf(-1))})
	assert.InDelta(t, 0.5, probs[0], 1e-6)
	assert.InDelta(t, 0.5, probs[1], 1e-6)
	assert.Equal(t, float32(0), probs[2])

	neg := float32(math.Inf(-1))
	assert.Equal(t, []float32{0.5, 0.5}, softmax([]float32{neg, neg}))
}

func BenchmarkSampler(b *testing.B) {
	logits := make([]float32, 8000)
	for i := range logits {
		logits[i] = float32(i%97) * 0.01
	}
	s := NewSampler(SamplingConfig{Temperature: 0.8, TopK: 40, TopP: 0.9, Seed: 1})
	b.ResetTimer()
	for range b.N {
		s.Sample(logits, nil)
	}
}
