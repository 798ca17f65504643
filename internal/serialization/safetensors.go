package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// SafeTensorHeader describes one tensor in a SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors exports tensors to a SafeTensors file at path, so
// trained weights can be inspected with other tooling.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: export paths come from the user
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := EncodeSafeTensors(file, tensors, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// EncodeSafeTensors writes the SafeTensors layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor name -> SafeTensorHeader, plus "__metadata__"]
//	[tensor data, in alphabetical name order]
func EncodeSafeTensors(out io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := safeTensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(raw.ByteSize())
		header[name] = SafeTensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := out.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// DecodeSafeTensors parses a SafeTensors image holding F32, I32 or BOOL
// tensors and returns the tensors with the metadata.
func DecodeSafeTensors(data []byte, device tensor.Device) (map[string]*tensor.RawTensor, map[string]string, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize || 8+headerSize > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: header of %d bytes", ErrTruncated, headerSize)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	body := data[8+headerSize:]

	var metadata map[string]string
	tensors := make(map[string]*tensor.RawTensor, len(entries))
	for name, msg := range entries {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		dtype, ok := parseSafeTensorsDType(h.DType)
		if !ok {
			return nil, nil, fmt.Errorf("tensor %s: %w: %s", name, ErrUnsupportedDType, h.DType)
		}
		shape := make(tensor.Shape, len(h.Shape))
		for i, dim := range h.Shape {
			shape[i] = int(dim)
		}
		raw, err := tensor.NewRaw(shape, dtype, device)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		start, end := h.DataOffsets[0], h.DataOffsets[1]
		if start < 0 || end > int64(len(body)) || end-start != int64(raw.ByteSize()) {
			return nil, nil, &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  name,
				Details: fmt.Sprintf("offsets [%d, %d) for %d bytes of data", start, end, len(body)),
			}
		}
		copy(raw.Data(), body[start:end])
		tensors[name] = raw
	}
	return tensors, metadata, nil
}

func safeTensorsDType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Bool:
		return "BOOL", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}

func parseSafeTensorsDType(s string) (tensor.DataType, bool) {
	switch s {
	case "F32":
		return tensor.Float32, true
	case "I32":
		return tensor.Int32, true
	case "BOOL":
		return tensor.Bool, true
	default:
		return 0, false
	}
}
