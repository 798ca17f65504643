package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Special token ids, shared by every Vocab.
const (
	PadID int32 = iota
	SOSID
	EOSID
	UNKID
	NumSpecial
)

// Special token strings, indexed by id.
var specialTokens = [NumSpecial]string{"<pad>", "<sos>", "<eos>", "<unk>"}

// Mode selects the Segmenter of a Vocab.
type Mode string

// Segmentation modes.
const (
	ModeChar     Mode = "char"
	ModeWord     Mode = "word"
	ModeBPE      Mode = "bpe"
	ModeTikToken Mode = "tiktoken"
)

// Vocabulary errors.
var (
	ErrUnknownMode = errors.New("unknown vocabulary mode")
	ErrTokenRange  = errors.New("token id out of range")
)

// VocabOptions configures BuildVocab. Zero values get defaults.
type VocabOptions struct {
	Mode      Mode   `json:"mode" yaml:"mode"`           // Default ModeWord
	MinFreq   int    `json:"min_freq" yaml:"min_freq"`   // Default 1
	MaxSize   int    `json:"max_size" yaml:"max_size"`   // Including specials; 0 for no limit
	Lowercase bool   `json:"lowercase" yaml:"lowercase"` // Fold case before segmenting
	Merges    int    `json:"merges" yaml:"merges"`       // BPE merges to learn, default 1000
	Encoding  string `json:"encoding" yaml:"encoding"`   // tiktoken encoding, default cl100k_base
}

// Validate checks the options without building anything.
func (o VocabOptions) Validate() error {
	switch o.Mode {
	case "", ModeChar, ModeWord, ModeBPE, ModeTikToken:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, o.Mode)
	}
	if o.MinFreq < 0 || o.MaxSize < 0 || o.Merges < 0 {
		return errors.New("vocabulary sizes and counts must not be negative")
	}
	if o.MaxSize > 0 && o.MaxSize <= int(NumSpecial) {
		return fmt.Errorf("max_size %d leaves no room beyond the %d special tokens", o.MaxSize, NumSpecial)
	}
	return nil
}

func (o VocabOptions) withDefaults() VocabOptions {
	if o.Mode == "" {
		o.Mode = ModeWord
	}
	if o.MinFreq <= 0 {
		o.MinFreq = 1
	}
	if o.Mode == ModeBPE && o.Merges <= 0 {
		o.Merges = 1000
	}
	if o.Mode == ModeTikToken && o.Encoding == "" {
		o.Encoding = encodingCL100kBase
	}
	return o
}

// Vocab maps segmenter units to dense ids, with the special tokens first.
// Units outside the vocabulary encode as <unk>.
type Vocab struct {
	opts   VocabOptions
	tokens []string
	index  map[string]int32
	seg    Segmenter
}

// BuildVocab collects the units of corpus and indexes them by decreasing
// frequency, ties broken alphabetically.
func BuildVocab(corpus []string, opts VocabOptions) (*Vocab, error) {
	opts = opts.withDefaults()
	if opts.Lowercase {
		lowered := make([]string, len(corpus))
		for i, s := range corpus {
			lowered[i] = strings.ToLower(s)
		}
		corpus = lowered
	}

	seg, err := learnSegmenter(corpus, opts)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, s := range corpus {
		for _, u := range seg.Split(s) {
			counts[u]++
		}
	}
	units := make([]string, 0, len(counts))
	for u, c := range counts {
		if c >= opts.MinFreq && !isSpecial(u) {
			units = append(units, u)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if counts[units[i]] != counts[units[j]] {
			return counts[units[i]] > counts[units[j]]
		}
		return units[i] < units[j]
	})
	if opts.MaxSize > 0 && len(units) > opts.MaxSize-int(NumSpecial) {
		units = units[:max(opts.MaxSize-int(NumSpecial), 0)]
	}

	return newVocab(units, opts, seg), nil
}

func learnSegmenter(corpus []string, opts VocabOptions) (Segmenter, error) {
	switch opts.Mode {
	case ModeChar:
		return charSegmenter{}, nil
	case ModeWord:
		return wordSegmenter{}, nil
	case ModeBPE:
		words := make(map[string]int)
		for _, s := range corpus {
			for _, w := range strings.Fields(s) {
				words[w]++
			}
		}
		return NewBPE(LearnBPE(words, opts.Merges)), nil
	case ModeTikToken:
		return NewTikToken(opts.Encoding)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
}

func newVocab(units []string, opts VocabOptions, seg Segmenter) *Vocab {
	tokens := make([]string, 0, len(units)+int(NumSpecial))
	tokens = append(tokens, specialTokens[:]...)
	tokens = append(tokens, units...)
	index := make(map[string]int32, len(tokens))
	for i, tok := range tokens {
		index[tok] = int32(i) //nolint:gosec // G115: vocabularies are far below 2^31 entries
	}
	return &Vocab{opts: opts, tokens: tokens, index: index, seg: seg}
}

func isSpecial(unit string) bool {
	for _, s := range specialTokens {
		if unit == s {
			return true
		}
	}
	return false
}

// Encode segments text and maps every unit to its id. No <sos> or <eos> is
// added.
func (v *Vocab) Encode(text string) ([]int32, error) {
	if v.opts.Lowercase {
		text = strings.ToLower(text)
	}
	units := v.seg.Split(text)
	ids := make([]int32, len(units))
	for i, u := range units {
		ids[i] = v.ID(u)
	}
	return ids, nil
}

// Decode maps ids back to text. Decoding stops at the first <eos>; <pad>
// and <sos> are skipped and <unk> is kept as "<unk>".
func (v *Vocab) Decode(ids []int32) (string, error) {
	units := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= len(v.tokens) {
			return "", fmt.Errorf("%w: %d not in [0, %d)", ErrTokenRange, id, len(v.tokens))
		}
		if id == EOSID {
			break
		}
		if id == PadID || id == SOSID {
			continue
		}
		units = append(units, v.tokens[id])
	}
	return v.seg.Join(units), nil
}

// ID returns the id of unit, or UNKID.
func (v *Vocab) ID(unit string) int32 {
	if id, ok := v.index[unit]; ok {
		return id
	}
	return UNKID
}

// Token returns the unit of id. Panics if id is out of range.
func (v *Vocab) Token(id int32) string {
	return v.tokens[id]
}

// Tokens returns every unit in id order, specials included.
func (v *Vocab) Tokens() []string {
	return v.tokens
}

// Mode returns the segmentation mode.
func (v *Vocab) Mode() Mode {
	return v.opts.Mode
}

// Segmenter returns the segmenter the vocabulary was built on.
func (v *Vocab) Segmenter() Segmenter {
	return v.seg
}

// VocabSize returns the number of ids, specials included.
func (v *Vocab) VocabSize() int {
	return len(v.tokens)
}

// BosToken returns SOSID.
func (v *Vocab) BosToken() int32 { return SOSID }

// EosToken returns EOSID.
func (v *Vocab) EosToken() int32 { return EOSID }

// PadToken returns PadID.
func (v *Vocab) PadToken() int32 { return PadID }

// UnkToken returns UNKID.
func (v *Vocab) UnkToken() int32 { return UNKID }

// IsSpecialToken reports whether token is one of the reserved ids.
func (v *Vocab) IsSpecialToken(token int32) bool {
	return token >= 0 && token < NumSpecial
}

type vocabJSON struct {
	Mode      Mode     `json:"mode"`
	Lowercase bool     `json:"lowercase,omitempty"`
	Encoding  string   `json:"encoding,omitempty"`
	Tokens    []string `json:"tokens"` // Without specials
	Merges    []Merge  `json:"merges,omitempty"`
}

// MarshalJSON stores everything needed to rebuild the vocabulary.
func (v *Vocab) MarshalJSON() ([]byte, error) {
	out := vocabJSON{
		Mode:      v.opts.Mode,
		Lowercase: v.opts.Lowercase,
		Encoding:  v.opts.Encoding,
		Tokens:    v.tokens[NumSpecial:],
	}
	if bpe, ok := v.seg.(*BPE); ok {
		out.Merges = bpe.Merges()
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a vocabulary written by MarshalJSON. A tiktoken
// vocabulary reloads its encoding.
func (v *Vocab) UnmarshalJSON(data []byte) error {
	var in vocabJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	opts := VocabOptions{Mode: in.Mode, Lowercase: in.Lowercase, Encoding: in.Encoding}

	var seg Segmenter
	switch in.Mode {
	case ModeChar:
		seg = charSegmenter{}
	case ModeWord:
		seg = wordSegmenter{}
	case ModeBPE:
		seg = NewBPE(in.Merges)
	case ModeTikToken:
		tt, err := NewTikToken(in.Encoding)
		if err != nil {
			return err
		}
		seg = tt
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, in.Mode)
	}
	*v = *newVocab(in.Tokens, opts, seg)
	return nil
}

type charSegmenter struct{}

func (charSegmenter) Split(text string) []string {
	units := make([]string, 0, len(text))
	for _, r := range text {
		units = append(units, string(r))
	}
	return units
}

func (charSegmenter) Join(units []string) string {
	return strings.Join(units, "")
}

type wordSegmenter struct{}

func (wordSegmenter) Split(text string) []string {
	return strings.Fields(text)
}

func (wordSegmenter) Join(units []string) string {
	return strings.Join(units, " ")
}
