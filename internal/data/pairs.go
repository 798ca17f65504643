// Package data reads parallel corpora and turns them into padded training
// batches.
//
// A corpus is a text file with one sentence pair per line, source and target
// separated by a single tab:
//
//	ich bin müde\ti am tired
//
// Targets are framed as <sos> tokens <eos>; sources end with <eos>.
package data

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// ErrMalformedLine is returned for a corpus line that is not a tab-separated
// pair of non-empty sentences.
var ErrMalformedLine = errors.New("malformed corpus line")

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 1 << 20

// Pair is one source/target sentence pair.
type Pair struct {
	Source string
	Target string
}

// ReadPairs parses tab-separated pairs from r. Blank lines are skipped.
func ReadPairs(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		src, tgt, ok := strings.Cut(text, "\t")
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if !ok || src == "" || tgt == "" || strings.Contains(tgt, "\t") {
			return nil, fmt.Errorf("line %d: %w", line, ErrMalformedLine)
		}
		pairs = append(pairs, Pair{Source: src, Target: tgt})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return pairs, nil
}

// LoadPairs reads a corpus file.
func LoadPairs(path string) ([]Pair, error) {
	f, err := os.Open(path) //nolint:gosec // G304: corpus path comes from the user
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	pairs, err := ReadPairs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

// Sources returns the source side of pairs, for building a vocabulary.
func Sources(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Source
	}
	return out
}

// Targets returns the target side of pairs.
func Targets(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Target
	}
	return out
}

// Example is an encoded pair.
type Example struct {
	Source []int32 // tokens then <eos>
	Target []int32 // <sos>, tokens, <eos>
}

// EncodeSource turns a sentence into model input ids, ending with <eos>.
func EncodeSource(v *tokenizer.Vocab, text string) ([]int32, error) {
	ids, err := v.Encode(text)
	if err != nil {
		return nil, err
	}
	return append(ids, tokenizer.EOSID), nil
}

// EncodeTarget frames a sentence as <sos> tokens <eos>.
func EncodeTarget(v *tokenizer.Vocab, text string) ([]int32, error) {
	ids, err := v.Encode(text)
	if err != nil {
		return nil, err
	}
	out := make([]int32, 0, len(ids)+2)
	out = append(out, tokenizer.SOSID)
	out = append(out, ids...)
	return append(out, tokenizer.EOSID), nil
}

// Encode converts pairs to examples. Pairs whose source or target token
// count exceeds maxLen are dropped and counted; maxLen <= 0 keeps everything.
func Encode(pairs []Pair, src, tgt *tokenizer.Vocab, maxLen int) (examples []Example, dropped int, err error) {
	examples = make([]Example, 0, len(pairs))
	for i, p := range pairs {
		s, err := EncodeSource(src, p.Source)
		if err != nil {
			return nil, 0, fmt.Errorf("pair %d source: %w", i, err)
		}
		t, err := EncodeTarget(tgt, p.Target)
		if err != nil {
			return nil, 0, fmt.Errorf("pair %d target: %w", i, err)
		}
		if maxLen > 0 && (len(s)-1 > maxLen || len(t)-2 > maxLen) {
			dropped++
			continue
		}
		examples = append(examples, Example{Source: s, Target: t})
	}
	return examples, dropped, nil
}
