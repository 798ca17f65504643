package train

// EditDistance is the Levenshtein distance between two token sequences.
func EditDistance(a, b []int32) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// ErrorRate is the total edit distance between hypotheses and references
// divided by the total reference length. It can exceed 1.
func ErrorRate(hyps, refs [][]int32) float64 {
	if len(hyps) != len(refs) {
		panic("ErrorRate: hypothesis and reference counts differ")
	}
	var dist, total int
	for i := range refs {
		dist += EditDistance(hyps[i], refs[i])
		total += len(refs[i])
	}
	if total == 0 {
		if dist == 0 {
			return 0
		}
		return 1
	}
	return float64(dist) / float64(total)
}
