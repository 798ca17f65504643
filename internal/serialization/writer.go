package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DefaultProducer is recorded when a header leaves Producer empty.
const DefaultProducer = "seq2seq"

// Writer writes a .s2s file.
//
// Data goes to a temporary file next to the destination, which replaces the
// destination only on a successful Close. An interrupted save never leaves
// a truncated checkpoint behind.
type Writer struct {
	path    string
	file    *os.File
	written bool
	closed  bool
}

// NewWriter creates a writer for path.
func NewWriter(path string) (*Writer, error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{path: path, file: file}, nil
}

// WriteStateDict writes the tensors of stateDict with header. The writer
// fills in the format version, creation time and tensor table.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.written {
		return fmt.Errorf("state dict already written")
	}
	if err := Encode(w.file, stateDict, header); err != nil {
		return err
	}
	w.written = true
	return nil
}

// Close finishes the file. If nothing was written the destination is left
// untouched.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.file.Name()
	if !w.written {
		_ = w.file.Close()
		_ = os.Remove(tmp)
		return nil
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// WriteFile writes stateDict and header to path in one call.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(stateDict, header); err != nil {
		_ = w.Close() // Discards the temporary file
		return err
	}
	return w.Close()
}

// Encode writes a complete .s2s image to out. Tensors are laid out in name
// order so that equal inputs give byte-identical files apart from CreatedAt.
func Encode(out io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	if header.Producer == "" {
		header.Producer = DefaultProducer
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	header.Tensors = make([]TensorMeta, 0, len(names))

	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  append([]int{}, raw.Shape()...),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	data := make([]byte, 0, offset)
	for _, name := range names {
		data = append(data, stateDict[name].Data()...)
	}
	checksum := ComputeChecksum(headerJSON, data)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], header.Flags())
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := out.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	start := dataOffset(int64(len(headerJSON)))
	if padding := start - int64(FixedHeaderSize+len(headerJSON)); padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}
