// Package generate decodes translations from a trained seq2seq model.
//
// Decoding is autoregressive: the source is encoded once, then the decoder
// is fed one token at a time with its own recurrent state until it emits
// <eos> or reaches the length limit. The next token is the argmax of the
// logits, or a sample from them when a temperature is set.
package generate

import (
	"math"
	"math/rand"
	"sort"
)

// SamplingConfig configures how the next token is chosen.
type SamplingConfig struct {
	// Temperature controls randomness. 0 = greedy, 1 = model distribution.
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// TopK limits sampling to the K most likely tokens. 0 = disabled.
	TopK int `json:"top_k" yaml:"top_k"`

	// TopP keeps the smallest set of tokens whose probability mass exceeds P.
	// 0 or 1 = disabled.
	TopP float32 `json:"top_p" yaml:"top_p"`

	// RepeatPenalty divides the logits of recently generated tokens.
	// 1 or 0 = no penalty.
	RepeatPenalty float32 `json:"repeat_penalty" yaml:"repeat_penalty"`
	RepeatWindow  int     `json:"repeat_window" yaml:"repeat_window"` // Tokens considered, 0 = all

	// Seed for reproducibility. -1 = random.
	Seed int64 `json:"seed" yaml:"seed"`
}

// GreedyConfig returns the deterministic argmax configuration.
func GreedyConfig() SamplingConfig {
	return SamplingConfig{RepeatPenalty: 1, Seed: -1}
}

// Sampler picks token ids from logits.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
	banned []int32
}

// NewSampler creates a sampler. Ids in banned are never returned unless every
// id is banned.
func NewSampler(config SamplingConfig, banned ...int32) *Sampler {
	seed := config.Seed
	if seed < 0 {
		seed = rand.Int63() //nolint:gosec // G404: caller asked for a random seed
	}
	return &Sampler{
		config: config,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // G404: sampling, not crypto
		banned: banned,
	}
}

// Greedy reports whether the sampler always returns the argmax.
func (s *Sampler) Greedy() bool {
	return s.config.Temperature <= 0
}

// Sample returns the next token id given logits over the vocabulary and the
// tokens generated so far. logits is not modified.
func (s *Sampler) Sample(logits []float32, previous []int32) int32 {
	scores := append([]float32(nil), logits...)
	neg := float32(math.Inf(-1))
	if len(s.banned) < len(scores) {
		for _, id := range s.banned {
			if int(id) < len(scores) {
				scores[id] = neg
			}
		}
	}

	if p := s.config.RepeatPenalty; p > 0 && p != 1 && len(previous) > 0 {
		s.penalize(scores, previous)
	}

	if s.Greedy() {
		return argmax(scores)
	}

	if s.config.Temperature != 1 {
		for i := range scores {
			scores[i] /= s.config.Temperature
		}
	}
	if k := s.config.TopK; k > 0 && k < len(scores) {
		keepTopK(scores, k)
	}
	if p := s.config.TopP; p > 0 && p < 1 {
		keepNucleus(scores, p)
	}
	return s.draw(softmax(scores))
}

// penalize pushes the logits of recent tokens towards "less likely".
func (s *Sampler) penalize(scores []float32, previous []int32) {
	recent := previous
	if w := s.config.RepeatWindow; w > 0 && len(recent) > w {
		recent = recent[len(recent)-w:]
	}
	seen := make(map[int32]struct{}, len(recent))
	for _, id := range recent {
		if _, dup := seen[id]; dup || int(id) >= len(scores) {
			continue
		}
		seen[id] = struct{}{}
		if scores[id] > 0 {
			scores[id] /= s.config.RepeatPenalty
		} else {
			scores[id] *= s.config.RepeatPenalty
		}
	}
}

func (s *Sampler) draw(probs []float32) int32 {
	r := s.rng.Float32()
	var cum float32
	last := 0
	for i, p := range probs {
		if p == 0 {
			continue
		}
		cum += p
		last = i
		if r < cum {
			return int32(i) //nolint:gosec // bounded by the vocabulary size
		}
	}
	// Rounding left r above the total mass.
	return int32(last) //nolint:gosec // bounded by the vocabulary size
}

func argmax(scores []float32) int32 {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return int32(best) //nolint:gosec // bounded by the vocabulary size
}

// keepTopK sets everything below the k-th largest score to -Inf.
func keepTopK(scores []float32, k int) {
	sorted := append([]float32(nil), scores...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	threshold := sorted[k-1]
	for i, v := range scores {
		if v < threshold {
			scores[i] = float32(math.Inf(-1))
		}
	}
}

// keepNucleus keeps the most likely tokens until their mass exceeds p.
// The most likely token always survives.
func keepNucleus(scores []float32, p float32) {
	probs := softmax(scores)
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	var mass float32
	cut := len(order)
	for rank, i := range order {
		mass += probs[i]
		if mass > p {
			cut = rank + 1
			break
		}
	}
	for _, i := range order[cut:] {
		scores[i] = float32(math.Inf(-1))
	}
}

// softmax converts scores to probabilities; -Inf scores get exactly zero.
func softmax(scores []float32) []float32 {
	peak := float32(math.Inf(-1))
	for _, v := range scores {
		peak = max(peak, v)
	}
	probs := make([]float32, len(scores))
	if math.IsInf(float64(peak), -1) {
		for i := range probs {
			probs[i] = 1 / float32(len(probs))
		}
		return probs
	}

	var sum float32
	for i, v := range scores {
		if math.IsInf(float64(v), -1) {
			continue
		}
		probs[i] = float32(math.Exp(float64(v - peak)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
