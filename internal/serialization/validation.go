package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Validation limits.
const (
	MaxHeaderSize    = 64 * 1024 * 1024 // Vocabularies live in the header
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 256
)

// ValidationLevel controls how much of a header is checked on open.
type ValidationLevel int

const (
	// ValidationStrict checks names, dtypes, sizes and every tensor region (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, dtypes and sizes but not region overlap.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted files.
	ValidationNone
)

// ValidateTensorOffsets checks that tensor regions are non-negative, inside
// the data section and disjoint.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName accepts dotted parameter names such as
// "decoder.lstm.weight_hh_l0" and rejects empty names, path-like names and
// control characters.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains a path separator"}
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains a control character"}
		}
	}
	return nil
}

// ValidateTensorMeta checks that a tensor's dtype is known and its byte size
// matches its shape.
func ValidateTensorMeta(m TensorMeta) error {
	dtype, ok := tensor.ParseDataType(m.DType)
	if !ok {
		return &ValidationError{Type: "invalid_dtype", Tensor: m.Name, Details: fmt.Sprintf("%q", m.DType)}
	}
	for _, d := range m.Shape {
		if d <= 0 {
			return &ValidationError{Type: "invalid_shape", Tensor: m.Name, Details: fmt.Sprintf("%v", m.Shape)}
		}
	}
	if want := int64(m.NumElements() * dtype.Size()); m.Size != want {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  m.Name,
			Details: fmt.Sprintf("shape %v of %s needs %d bytes, header says %d", m.Shape, m.DType, want, m.Size),
		}
	}
	return nil
}

// ValidateHeader checks a header against a data section of dataSize bytes.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor appears twice"}
		}
		seen[t.Name] = true
		if err := ValidateTensorMeta(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}
