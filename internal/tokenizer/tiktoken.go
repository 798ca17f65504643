package tokenizer

import (
	"fmt"
	"strconv"

	"github.com/pkoukk/tiktoken-go"
)

// encodingCL100kBase is the default tiktoken encoding.
const encodingCL100kBase = tiktoken.MODEL_CL100K_BASE

// TikToken segments text with an OpenAI BPE encoding.
//
// Each unit is one tiktoken id written in decimal, so a Vocab in tiktoken
// mode indexes only the ids seen in its corpus and keeps its embedding
// tables small. Known encodings are cl100k_base, p50k_base and r50k_base.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding. The first load may fetch its BPE
// ranks over the network; tiktoken-go caches them under TIKTOKEN_CACHE_DIR.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// NewTikTokenForModel loads the encoding used by an OpenAI model, e.g.
// "gpt-4".
func NewTikTokenForModel(modelName string) (*TikToken, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken for model %q: %w", modelName, err)
	}
	return &TikToken{encoding: encoding, name: modelName}, nil
}

// Split encodes text and returns the ids as decimal strings.
func (t *TikToken) Split(text string) []string {
	ids := t.encoding.Encode(text, nil, nil)
	units := make([]string, len(ids))
	for i, id := range ids {
		units[i] = strconv.Itoa(id)
	}
	return units
}

// Join decodes units produced by Split. Units that are not ids, such as
// "<unk>", are dropped.
func (t *TikToken) Join(units []string) string {
	ids := make([]int, 0, len(units))
	for _, u := range units {
		if id, err := strconv.Atoi(u); err == nil {
			ids = append(ids, id)
		}
	}
	return t.encoding.Decode(ids)
}

// Name returns the encoding or model name the segmenter was loaded with.
func (t *TikToken) Name() string {
	return t.name
}
