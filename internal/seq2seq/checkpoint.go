package seq2seq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// ModelType identifies seq2seq checkpoints in the file header.
const ModelType = "seq2seq-lstm"

// optimizerPrefix namespaces optimizer buffers next to the model weights.
const optimizerPrefix = "optimizer."

// Vocabulary keys in the checkpoint header.
const (
	SourceVocabKey = "source"
	TargetVocabKey = "target"
)

// Checkpoint is everything stored in a model file besides the weights.
type Checkpoint struct {
	Config      Config
	SourceVocab *tokenizer.Vocab              // nil if not saved
	TargetVocab *tokenizer.Vocab              // nil if not saved
	Training    *serialization.CheckpointMeta // nil for inference-only files
	Optimizer   map[string]*tensor.RawTensor  // Optimizer.StateDict(), nil if absent
	Metadata    map[string]string
}

// SaveCheckpoint atomically writes the model weights and ckpt to path.
// ckpt.Config is ignored; the model's own config is recorded.
func SaveCheckpoint[B tensor.Backend](path string, m *Model[B], ckpt Checkpoint) error {
	header, dict, err := checkpointImage(m, ckpt)
	if err != nil {
		return err
	}
	if err := serialization.WriteFile(path, dict, header); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", path, err)
	}
	return nil
}

func checkpointImage[B tensor.Backend](m *Model[B], ckpt Checkpoint) (serialization.Header, map[string]*tensor.RawTensor, error) {
	cfgJSON, err := json.Marshal(m.Config())
	if err != nil {
		return serialization.Header{}, nil, fmt.Errorf("encode model config: %w", err)
	}
	header := serialization.Header{
		ModelType:   ModelType,
		ModelConfig: cfgJSON,
		Checkpoint:  ckpt.Training,
		Metadata:    ckpt.Metadata,
	}

	vocabs := map[string]*tokenizer.Vocab{SourceVocabKey: ckpt.SourceVocab, TargetVocabKey: ckpt.TargetVocab}
	for key, v := range vocabs {
		if v == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return serialization.Header{}, nil, fmt.Errorf("encode %s vocabulary: %w", key, err)
		}
		if header.Vocabularies == nil {
			header.Vocabularies = make(map[string]json.RawMessage)
		}
		header.Vocabularies[key] = raw
	}

	dict := m.StateDict()
	for name, raw := range ckpt.Optimizer {
		key := optimizerPrefix + name
		if _, clash := dict[key]; clash {
			return serialization.Header{}, nil, fmt.Errorf("optimizer state %q collides with a model tensor", key)
		}
		dict[key] = raw
	}
	return header, dict, nil
}

// ReadCheckpoint parses a checkpoint file without building a model. The
// returned weights hold model tensors only.
func ReadCheckpoint(path string, device tensor.Device) (Checkpoint, map[string]*tensor.RawTensor, error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	dict, err := reader.ReadStateDict(device)
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	ckpt, weights, err := splitCheckpoint(reader.Header(), dict)
	if err != nil {
		return Checkpoint{}, nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return ckpt, weights, nil
}

func splitCheckpoint(header serialization.Header, dict map[string]*tensor.RawTensor) (Checkpoint, map[string]*tensor.RawTensor, error) {
	if header.ModelType != ModelType {
		return Checkpoint{}, nil, fmt.Errorf("model type %q, want %q", header.ModelType, ModelType)
	}

	ckpt := Checkpoint{Training: header.Checkpoint, Metadata: header.Metadata}
	if err := json.Unmarshal(header.ModelConfig, &ckpt.Config); err != nil {
		return Checkpoint{}, nil, fmt.Errorf("decode model config: %w", err)
	}

	for key, dst := range map[string]**tokenizer.Vocab{SourceVocabKey: &ckpt.SourceVocab, TargetVocabKey: &ckpt.TargetVocab} {
		raw, ok := header.Vocabularies[key]
		if !ok {
			continue
		}
		v := new(tokenizer.Vocab)
		if err := json.Unmarshal(raw, v); err != nil {
			return Checkpoint{}, nil, fmt.Errorf("decode %s vocabulary: %w", key, err)
		}
		*dst = v
	}

	weights := make(map[string]*tensor.RawTensor, len(dict))
	for name, raw := range dict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			if ckpt.Optimizer == nil {
				ckpt.Optimizer = make(map[string]*tensor.RawTensor)
			}
			ckpt.Optimizer[rest] = raw
			continue
		}
		weights[name] = raw
	}
	return ckpt, weights, nil
}

// LoadCheckpoint rebuilds a model from a checkpoint file on backend.
func LoadCheckpoint[B tensor.Backend](path string, backend B) (*Model[B], Checkpoint, error) {
	ckpt, weights, err := ReadCheckpoint(path, backend.Device())
	if err != nil {
		return nil, Checkpoint{}, err
	}
	m, err := NewModel(ckpt.Config, backend)
	if err != nil {
		return nil, Checkpoint{}, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if err := m.LoadStateDict(weights); err != nil {
		return nil, Checkpoint{}, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return m, ckpt, nil
}
