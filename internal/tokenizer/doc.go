// Package tokenizer turns sentences into token ids for the seq2seq model.
//
// A Vocab is built from a training corpus on top of a Segmenter, which
// decides what a token is:
//   - char: one token per character
//   - word: whitespace-separated words
//   - bpe: subwords from byte-pair merges learned on the corpus
//   - tiktoken: subwords from an OpenAI encoding (cl100k_base, ...), compacted
//     to the ids that actually occur in the corpus
//
// Every Vocab reserves the same special ids, so a model's padding index does
// not depend on the vocabulary:
//
//	<pad>=0  <sos>=1  <eos>=2  <unk>=3
//
// Example usage:
//
//	vocab, err := tokenizer.BuildVocab(sentences, tokenizer.VocabOptions{Mode: tokenizer.ModeWord})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ids, err := vocab.Encode("ein kleiner test")
//	text, err := vocab.Decode(ids)
package tokenizer
