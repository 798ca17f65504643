package tokenizer

import (
	"sort"
	"strings"
)

// EndOfWord marks the last unit of every word produced by BPE.Split, so Join
// can restore word boundaries.
const EndOfWord = "</w>"

// Merge is one byte-pair merge rule: the adjacent units First and Second
// become First+Second.
type Merge [2]string

// BPE segments words into subword units by applying learned merges, lowest
// rank first.
type BPE struct {
	merges []Merge
	ranks  map[Merge]int
}

// NewBPE creates a segmenter from merges in rank order.
func NewBPE(merges []Merge) *BPE {
	ranks := make(map[Merge]int, len(merges))
	for i, m := range merges {
		if _, dup := ranks[m]; !dup {
			ranks[m] = i
		}
	}
	return &BPE{merges: merges, ranks: ranks}
}

// LearnBPE learns up to numMerges merges from word frequencies. At each step
// the most frequent adjacent pair is merged; ties go to the lexicographically
// smallest pair so that learning is deterministic. Learning stops early when
// no pair occurs at least twice.
//
//nolint:gocognit // Pair counting and merging are one loop over the word list.
func LearnBPE(wordCounts map[string]int, numMerges int) []Merge {
	words := make([]string, 0, len(wordCounts))
	for w := range wordCounts {
		words = append(words, w)
	}
	sort.Strings(words)

	symbols := make([][]string, len(words))
	for i, w := range words {
		symbols[i] = initialSymbols(w)
	}

	var merges []Merge
	for len(merges) < numMerges {
		counts := make(map[Merge]int)
		for i, syms := range symbols {
			freq := wordCounts[words[i]]
			for j := 0; j+1 < len(syms); j++ {
				counts[Merge{syms[j], syms[j+1]}] += freq
			}
		}

		var best Merge
		bestCount := 1
		for m, c := range counts {
			if c > bestCount || (c == bestCount && c > 1 && lessMerge(m, best)) {
				best, bestCount = m, c
			}
		}
		if bestCount < 2 {
			break
		}

		merges = append(merges, best)
		for i, syms := range symbols {
			symbols[i] = applyMerge(syms, best)
		}
	}
	return merges
}

func lessMerge(a, b Merge) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func initialSymbols(word string) []string {
	runes := []rune(word)
	syms := make([]string, len(runes))
	for i, r := range runes {
		syms[i] = string(r)
	}
	if len(syms) > 0 {
		syms[len(syms)-1] += EndOfWord
	}
	return syms
}

func applyMerge(syms []string, m Merge) []string {
	out := syms[:0:0]
	for i := 0; i < len(syms); i++ {
		if i+1 < len(syms) && syms[i] == m[0] && syms[i+1] == m[1] {
			out = append(out, m[0]+m[1])
			i++
			continue
		}
		out = append(out, syms[i])
	}
	return out
}

// Split segments each whitespace-separated word of text.
func (b *BPE) Split(text string) []string {
	var units []string
	for _, word := range strings.Fields(text) {
		units = append(units, b.segment(word)...)
	}
	return units
}

func (b *BPE) segment(word string) []string {
	syms := initialSymbols(word)
	for len(syms) > 1 {
		bestIdx := -1
		bestRank := len(b.merges)
		for i := 0; i+1 < len(syms); i++ {
			if rank, ok := b.ranks[Merge{syms[i], syms[i+1]}]; ok && rank < bestRank {
				bestIdx, bestRank = i, rank
			}
		}
		if bestIdx == -1 {
			break
		}
		syms = applyMerge(syms, b.merges[bestRank])
	}
	return syms
}

// Join concatenates units and turns word ends back into spaces.
func (b *BPE) Join(units []string) string {
	text := strings.ReplaceAll(strings.Join(units, ""), EndOfWord, " ")
	return strings.TrimRight(text, " ")
}

// Merges returns the merge rules in rank order.
func (b *BPE) Merges() []Merge {
	return b.merges
}
