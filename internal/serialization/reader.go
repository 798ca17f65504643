package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reader reads a .s2s file.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	version    uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Faster, but trusts the file blindly
	ValidationLevel        ValidationLevel // Header checks, strict by default
}

// NewReader opens path with checksum and strict header validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens path with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: checkpoint paths come from the user
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file, opts: opts}
	if err := r.parse(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) parse() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}
	headerJSON, err := parseFixedHeader(fixed, r)
	if err != nil {
		return err
	}
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	r.dataOffset = dataOffset(int64(len(headerJSON)))
	if info.Size() < r.dataOffset+r.dataSize {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, r.dataOffset+r.dataSize, info.Size())
	}

	if !r.opts.SkipChecksumValidation {
		section := io.NewSectionReader(r.file, r.dataOffset, r.dataSize)
		computed, err := ComputeChecksumReader(headerJSON, section)
		if err != nil {
			return fmt.Errorf("failed to read tensor data: %w", err)
		}
		if err := ValidateChecksum(computed, r.checksum); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// parseFixedHeader decodes the 64-byte prefix into r and returns a buffer
// sized for the JSON header.
func parseFixedHeader(fixed []byte, r *Reader) ([]byte, error) {
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	r.version = binary.LittleEndian.Uint32(fixed[4:8])
	if r.version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, r.version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > 1<<40 {
		return nil, fmt.Errorf("%w: data size %d", ErrTruncated, dataSize)
	}
	r.dataSize = int64(dataSize)
	return make([]byte, headerSize), nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the fixed-header flags.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// Version returns the format version of the file.
func (r *Reader) Version() uint32 {
	return r.version
}

// Metadata returns the custom metadata map.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns every tensor name, in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata of one tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			meta := r.header.Tensors[i]
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor reads one tensor onto device.
func (r *Reader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.load(*meta, device)
}

func (r *Reader) load(meta TensorMeta, device tensor.Device) (*tensor.RawTensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", meta.Name, err)
	}
	if int64(raw.ByteSize()) != meta.Size {
		return nil, fmt.Errorf("tensor %s: %d bytes for shape %v, header says %d", meta.Name, raw.ByteSize(), meta.Shape, meta.Size)
	}
	if _, err := r.file.ReadAt(raw.Data(), r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", meta.Name, err)
	}
	return raw, nil
}

// ReadStateDict reads every tensor.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	dict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.load(meta, device)
		if err != nil {
			return nil, err
		}
		dict[meta.Name] = raw
	}
	return dict, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Decode reads a complete .s2s image from an in-memory buffer.
func Decode(data []byte, device tensor.Device, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	if len(data) < FixedHeaderSize {
		return nil, Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	var r Reader
	r.opts = opts
	headerJSON, err := parseFixedHeader(data[:FixedHeaderSize], &r)
	if err != nil {
		return nil, Header{}, err
	}
	r.dataOffset = dataOffset(int64(len(headerJSON)))
	if int64(len(data)) < r.dataOffset+r.dataSize {
		return nil, Header{}, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, r.dataOffset+r.dataSize, len(data))
	}
	headerJSON = data[FixedHeaderSize : FixedHeaderSize+len(headerJSON)]
	section := data[r.dataOffset : r.dataOffset+r.dataSize]

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(headerJSON, section), r.checksum); err != nil {
			return nil, Header{}, err
		}
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&r.header, r.dataSize, opts.ValidationLevel); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	dict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	src := bytes.NewReader(section)
	for _, meta := range r.header.Tensors {
		dtype, ok := tensor.ParseDataType(meta.DType)
		if !ok {
			return nil, Header{}, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
		}
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
		if err != nil {
			return nil, Header{}, fmt.Errorf("invalid shape for tensor %s: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, Header{}, fmt.Errorf("tensor %s: %d bytes for shape %v, header says %d",
				meta.Name, raw.ByteSize(), meta.Shape, meta.Size)
		}
		if _, err := src.ReadAt(raw.Data(), meta.Offset); err != nil {
			return nil, Header{}, fmt.Errorf("failed to read tensor %s: %w", meta.Name, err)
		}
		dict[meta.Name] = raw
	}
	return dict, r.header, nil
}
