// Package config loads training configuration from YAML or JSON files.
//
//	model:
//	  hidden_size: 256
//	  attention: true
//	train:
//	  epochs: 20
//	  optimizer: {kind: adam, lr: 0.001}
//	data:
//	  train: data/train.tsv
//	  source: {mode: word, min_freq: 2}
//
// Fields missing from a file keep their Default values.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full training configuration.
type Config struct {
	Model seq2seq.Config `json:"model" yaml:"model"`
	Train Train          `json:"train" yaml:"train"`
	Data  Data           `json:"data" yaml:"data"`
}

// Train holds optimization settings.
type Train struct {
	Epochs       int          `json:"epochs" yaml:"epochs"`
	BatchSize    int          `json:"batch_size" yaml:"batch_size"`
	Optimizer    optim.Config `json:"optimizer" yaml:"optimizer"`
	ClipNorm     float64      `json:"clip_norm" yaml:"clip_norm"` // 0 disables clipping
	Shuffle      bool         `json:"shuffle" yaml:"shuffle"`
	Seed         int64        `json:"seed" yaml:"seed"`
	LogEvery     int          `json:"log_every" yaml:"log_every"`           // Batches between progress lines, 0 for per-epoch only
	MaxDecodeLen int          `json:"max_decode_len" yaml:"max_decode_len"` // Validation decoding limit
	Output       string       `json:"output" yaml:"output"`                 // Best checkpoint path
}

// Data describes the corpora and how to build vocabularies from them.
type Data struct {
	TrainPath string                 `json:"train" yaml:"train"`
	ValidPath string                 `json:"valid" yaml:"valid"`
	MaxLen    int                    `json:"max_len" yaml:"max_len"` // Drop longer training pairs, 0 keeps all
	Source    tokenizer.VocabOptions `json:"source" yaml:"source"`
	Target    tokenizer.VocabOptions `json:"target" yaml:"target"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Model: seq2seq.DefaultConfig(),
		Train: Train{
			Epochs:       20,
			BatchSize:    32,
			Optimizer:    optim.Config{Kind: optim.KindAdam, LR: 0.001},
			ClipNorm:     5,
			Shuffle:      true,
			Seed:         1,
			MaxDecodeLen: 50,
			Output:       "model.s2s",
		},
		Data: Data{
			MaxLen: 50,
			Source: tokenizer.VocabOptions{Mode: tokenizer.ModeWord, MinFreq: 1},
			Target: tokenizer.VocabOptions{Mode: tokenizer.ModeWord, MinFreq: 1},
		},
	}
}

// Load reads path over Default. Files ending in .json are JSON, everything
// else is YAML. Unknown keys are rejected.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: config path comes from the user
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw, isJSON(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw over Default.
func Parse(raw []byte, asJSON bool) (Config, error) {
	cfg := Default()
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode json: %w", err)
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Marshal encodes cfg as JSON or YAML.
func Marshal(cfg Config, asJSON bool) ([]byte, error) {
	if asJSON {
		return json.MarshalIndent(cfg, "", "  ")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes cfg to path in the format its extension selects.
func Save(path string, cfg Config) error {
	raw, err := Marshal(cfg, isJSON(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// Validate checks everything that can be checked before the vocabularies
// exist. Vocabulary sizes are filled in from the data, so zero is accepted.
func (c Config) Validate() error {
	model := c.Model
	if model.SrcVocabSize == 0 {
		model.SrcVocabSize = int(tokenizer.NumSpecial)
	}
	if model.TgtVocabSize == 0 {
		model.TgtVocabSize = int(tokenizer.NumSpecial)
	}
	if err := model.Validate(); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalid, err)
	}
	// Batching, decoding and the loss all pad with the vocabulary's <pad>.
	if model.PaddingIdx != int(tokenizer.PadID) {
		return fmt.Errorf("%w: model.padding_idx must be %d (<pad>), got %d", ErrInvalid, tokenizer.PadID, model.PaddingIdx)
	}

	t := c.Train
	switch {
	case t.Epochs <= 0:
		return fmt.Errorf("%w: train.epochs must be positive, got %d", ErrInvalid, t.Epochs)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: train.batch_size must be positive, got %d", ErrInvalid, t.BatchSize)
	case t.Optimizer.LR <= 0:
		return fmt.Errorf("%w: train.optimizer.lr must be positive, got %v", ErrInvalid, t.Optimizer.LR)
	case t.Optimizer.Kind != optim.KindAdam && t.Optimizer.Kind != optim.KindSGD:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalid, t.Optimizer.Kind)
	case t.ClipNorm < 0:
		return fmt.Errorf("%w: train.clip_norm must not be negative", ErrInvalid)
	case t.MaxDecodeLen <= 0:
		return fmt.Errorf("%w: train.max_decode_len must be positive", ErrInvalid)
	case c.Data.MaxLen < 0:
		return fmt.Errorf("%w: data.max_len must not be negative", ErrInvalid)
	}

	for side, opts := range map[string]tokenizer.VocabOptions{"source": c.Data.Source, "target": c.Data.Target} {
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("%w: data.%s: %w", ErrInvalid, side, err)
		}
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
