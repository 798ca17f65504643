// Package tokenizer provides the vocabularies that turn sentences into
// token ids for seq2seq models.
//
// A Vocab is built from a corpus with one of four segmentations: words,
// characters, learned BPE merges or a tiktoken encoding. Ids 0-3 are always
// <pad>, <sos>, <eos> and <unk>.
//
// Example usage:
//
//	import "github.com/born-ml/seq2seq/tokenizer"
//
//	vocab, err := tokenizer.BuildVocab(sentences, tokenizer.VocabOptions{Mode: tokenizer.ModeWord})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ids, err := vocab.Encode("the cat sat")
//	text, err := vocab.Decode(ids)
package tokenizer

import (
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Tokenizer is the core interface for text tokenization.
type Tokenizer = tokenizer.Tokenizer

// Vocab maps segmented units to ids.
type Vocab = tokenizer.Vocab

// VocabOptions configures BuildVocab.
type VocabOptions = tokenizer.VocabOptions

// Mode selects how text is segmented.
type Mode = tokenizer.Mode

// Segmentation modes.
const (
	ModeChar     = tokenizer.ModeChar
	ModeWord     = tokenizer.ModeWord
	ModeBPE      = tokenizer.ModeBPE
	ModeTikToken = tokenizer.ModeTikToken
)

// Special token ids.
const (
	PadID = tokenizer.PadID
	SOSID = tokenizer.SOSID
	EOSID = tokenizer.EOSID
	UNKID = tokenizer.UNKID
)

// BuildVocab collects the units of corpus into a vocabulary.
func BuildVocab(corpus []string, opts VocabOptions) (*Vocab, error) {
	return tokenizer.BuildVocab(corpus, opts)
}

// Segmenter splits text into vocabulary units and joins them back.
type Segmenter = tokenizer.Segmenter

// TikToken segments text into OpenAI BPE ids.
type TikToken = tokenizer.TikToken

// NewTikToken loads a tiktoken encoding such as "cl100k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	return tokenizer.NewTikToken(encodingName)
}
