package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTikTokenOrSkip loads an encoding, skipping the test when its ranks
// cannot be fetched (offline CI).
func newTikTokenOrSkip(t *testing.T, encoding string) *TikToken {
	t.Helper()
	tok, err := NewTikToken(encoding)
	if err != nil {
		t.Skipf("tiktoken encoding %s unavailable: %v", encoding, err)
	}
	return tok
}

func TestTikToken_InvalidEncoding(t *testing.T) {
	tok, err := NewTikToken("invalid_encoding_xyz")
	assert.Error(t, err)
	assert.Nil(t, tok)
}

func TestTikToken_Roundtrip(t *testing.T) {
	tok := newTikTokenOrSkip(t, "cl100k_base")

	for _, text := range []string{"Hello, world!", "Hello\nWorld\n", "Hello 世界! 🌍", ""} {
		units := tok.Split(text)
		for _, u := range units {
			assert.NotEmpty(t, u)
		}
		assert.Equal(t, text, tok.Join(units))
	}
	assert.Equal(t, "cl100k_base", tok.Name())
}

func TestTikToken_ForModel(t *testing.T) {
	tok, err := NewTikTokenForModel("gpt-4")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	assert.Equal(t, "gpt-4", tok.Name())
	assert.Equal(t, "abc", tok.Join(tok.Split("abc")))
}

func TestTikToken_JoinSkipsNonIDs(t *testing.T) {
	tok := newTikTokenOrSkip(t, "cl100k_base")

	units := tok.Split("hello world")
	withUnk := append([]string{"<unk>"}, units...)
	assert.Equal(t, "hello world", tok.Join(withUnk))
}

func TestVocab_TikTokenMode(t *testing.T) {
	newTikTokenOrSkip(t, "cl100k_base")

	corpus := []string{"the cat sat", "the dog sat"}
	vocab, err := BuildVocab(corpus, VocabOptions{Mode: ModeTikToken})
	require.NoError(t, err)
	assert.Less(t, vocab.VocabSize(), 20, "only ids seen in the corpus are indexed")

	ids, err := vocab.Encode("the cat sat")
	require.NoError(t, err)
	text, err := vocab.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "the cat sat", text)
}
