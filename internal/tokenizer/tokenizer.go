package tokenizer

// Tokenizer converts between text and token ids. Vocab implements it.
type Tokenizer interface {
	Encode(text string) ([]int32, error)
	Decode(tokens []int32) (string, error)

	// VocabSize returns the number of ids, special tokens included.
	VocabSize() int

	// BosToken, EosToken, PadToken and UnkToken return the special ids,
	// or -1 when the tokenizer has none.
	BosToken() int32
	EosToken() int32
	PadToken() int32
	UnkToken() int32

	IsSpecialToken(token int32) bool
}

// Segmenter splits text into the units a Vocab indexes and joins them back.
// The char, word, BPE and tiktoken modes each have one.
type Segmenter interface {
	Split(text string) []string
	Join(units []string) string
}
