package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinWork: 1}

	n := 1000
	seen := make([]int32, n)
	For(n, 1, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, 1<<20, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
}

func TestForPairs(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinWork: 1}

	outer, inner := 4, 8
	var hits [4][8]int32
	ForPairs(outer, inner, 1, func(o, i int) {
		atomic.AddInt32(&hits[o][i], 1)
	}, cfg)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			assert.Equal(t, int32(1), hits[o][i])
		}
	}
}

func TestNumWorkers(t *testing.T) {
	tests := []struct {
		name        string
		n, work     int
		cfg         Config
		wantWorkers int
	}{
		{"disabled", 100, 1 << 20, Config{Enabled: false, NumWorkers: 8, MinWork: 1}, 1},
		{"single item", 1, 1 << 20, Config{Enabled: true, NumWorkers: 8, MinWork: 1}, 1},
		{"too little work", 10, 10, Config{Enabled: true, NumWorkers: 8, MinWork: 1000}, 1},
		{"bounded by workers", 100, 1 << 20, Config{Enabled: true, NumWorkers: 8, MinWork: 1}, 8},
		{"bounded by items", 2, 1 << 20, Config{Enabled: true, NumWorkers: 8, MinWork: 1}, 2},
		{"bounded by work", 100, 10, Config{Enabled: true, NumWorkers: 8, MinWork: 500}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantWorkers, numWorkers(tt.n, tt.work, tt.cfg))
		})
	}
}
