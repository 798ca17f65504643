package serialization

import (
	"encoding/json"
	"time"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "S2SQ"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .s2s format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // Optimizer state tensors included
	FlagHasVocab     uint32 = 1 << 1 // Vocabularies included
	FlagHasMetadata  uint32 = 1 << 2 // Custom metadata included
)

// Header is the JSON header of a .s2s file.
type Header struct {
	FormatVersion int                        `json:"format_version"`
	Producer      string                     `json:"producer"`               // Program version that wrote the file
	ModelType     string                     `json:"model_type"`             // e.g. "seq2seq-lstm"
	CreatedAt     time.Time                  `json:"created_at"`             // UTC
	Tensors       []TensorMeta               `json:"tensors"`                // Filled in by the writer
	ModelConfig   json.RawMessage            `json:"model_config,omitempty"` // Architecture, owned by the caller
	Vocabularies  map[string]json.RawMessage `json:"vocabularies,omitempty"` // e.g. "source", "target"
	Checkpoint    *CheckpointMeta            `json:"checkpoint,omitempty"`   // Training state, optional
	Metadata      map[string]string          `json:"metadata,omitempty"`
}

// CheckpointMeta records where training stopped.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`
	Step            int64              `json:"step"`
	Loss            float64            `json:"loss"`
	ValidErrorRate  float64            `json:"valid_error_rate"`
	OptimizerType   string             `json:"optimizer_type,omitempty"` // "adam", "sgd"
	OptimizerConfig map[string]float64 `json:"optimizer_config,omitempty"`
}

// TensorMeta describes one tensor of the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "encoder.lstm.weight_ih_l0"
	DType  string `json:"dtype"`  // "float32", "int32" or "bool"
	Shape  []int  `json:"shape"`  // Empty for scalars
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Bytes
}

// Flags derives the fixed-header flags from the header contents.
func (h *Header) Flags() uint32 {
	var flags uint32
	if h.Checkpoint != nil && h.Checkpoint.OptimizerType != "" {
		flags |= FlagHasOptimizer
	}
	if len(h.Vocabularies) > 0 {
		flags |= FlagHasVocab
	}
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	return flags
}

// NumElements returns the element count described by Shape.
func (m TensorMeta) NumElements() int {
	return tensor.Shape(m.Shape).NumElements()
}

// dataOffset returns where tensor data starts for a header of headerSize bytes.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
