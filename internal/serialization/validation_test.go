package serialization

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string // Empty for no error
	}{
		{
			name: "disjoint",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 100, Size: 200},
			},
			dataSize: 300,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 99, Size: 100},
			},
			dataSize: 300,
			wantType: "offset_overlap",
		},
		{
			name: "unsorted overlap",
			tensors: []TensorMeta{
				{Name: "b", Offset: 50, Size: 100},
				{Name: "a", Offset: 0, Size: 100},
			},
			dataSize: 300,
			wantType: "offset_overlap",
		},
		{
			name:     "beyond data section",
			tensors:  []TensorMeta{{Name: "a", Offset: 100, Size: 200}},
			dataSize: 250,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "a", Offset: -100, Size: 100}},
			dataSize: 500,
			wantType: "negative_offset",
		},
		{
			name:     "negative size",
			tensors:  []TensorMeta{{Name: "a", Offset: 0, Size: -1}},
			dataSize: 500,
			wantType: "negative_offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			if validationErr.Type != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, validationErr.Type)
			}
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	valid := []string{
		"encoder.embedding.weight",
		"decoder.lstm.weight_hh_l0",
		"encoder.lstm.bias_ih_l1_reverse",
		"optimizer.m.generator.bias",
	}
	for _, name := range valid {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("expected %q to be valid, got: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"../../../etc/passwd",
		"encoder/lstm",
		"encoder\\lstm",
		"tensor\x00hidden",
		"tab\tname",
		strings.Repeat("a", MaxTensorNameLen+1),
	}
	for _, name := range invalid {
		err := ValidateTensorName(name)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError for %q, got %v", name, err)
		}
	}
}

func TestValidateTensorMeta(t *testing.T) {
	tests := []struct {
		name     string
		meta     TensorMeta
		wantType string
	}{
		{"float32 matrix", TensorMeta{Name: "w", DType: "float32", Shape: []int{2, 3}, Size: 24}, ""},
		{"bool vector", TensorMeta{Name: "m", DType: "bool", Shape: []int{5}, Size: 5}, ""},
		{"scalar", TensorMeta{Name: "step", DType: "float32", Size: 4}, ""},
		{"unknown dtype", TensorMeta{Name: "w", DType: "float64", Shape: []int{2}, Size: 16}, "invalid_dtype"},
		{"zero dim", TensorMeta{Name: "w", DType: "int32", Shape: []int{0, 3}, Size: 0}, "invalid_shape"},
		{"short size", TensorMeta{Name: "w", DType: "float32", Shape: []int{2, 3}, Size: 20}, "size_mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorMeta(tt.meta)
			if tt.wantType == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) || validationErr.Type != tt.wantType {
				t.Errorf("expected %s, got %v", tt.wantType, err)
			}
		})
	}
}

func TestValidateHeader_Levels(t *testing.T) {
	overlapping := Header{
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{25}, Offset: 0, Size: 100},
			{Name: "b", DType: "float32", Shape: []int{25}, Offset: 50, Size: 100},
		},
	}
	if err := ValidateHeader(&overlapping, 200, ValidationNormal); err != nil {
		t.Errorf("normal validation should not check regions, got: %v", err)
	}
	if err := ValidateHeader(&overlapping, 200, ValidationStrict); err == nil {
		t.Error("strict validation should fail on overlap")
	}

	duplicate := Header{
		Tensors: []TensorMeta{
			{Name: "a", DType: "float32", Shape: []int{1}, Offset: 0, Size: 4},
			{Name: "a", DType: "float32", Shape: []int{1}, Offset: 4, Size: 4},
		},
	}
	if err := ValidateHeader(&duplicate, 8, ValidationNormal); err == nil {
		t.Error("duplicate names should fail validation")
	}

	malicious := Header{Tensors: []TensorMeta{{Name: "../x", Offset: -1, Size: -1}}}
	if err := ValidateHeader(&malicious, 100, ValidationNone); err != nil {
		t.Errorf("ValidationNone should skip all checks, got: %v", err)
	}
}

func TestValidationError_Messages(t *testing.T) {
	tests := []struct {
		err      *ValidationError
		expected string
	}{
		{
			&ValidationError{Type: "out_of_bounds", Tensor: "w", Details: "offset 100 + size 200 > data size 250"},
			`out_of_bounds: tensor "w": offset 100 + size 200 > data size 250`,
		},
		{
			&ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "regions [0-100] and [50-150] overlap"},
			`offset_overlap: tensors "a" and "b": regions [0-100] and [50-150] overlap`,
		},
		{
			&ValidationError{Type: "too_many_tensors", Details: "got 10001, max 10000"},
			"too_many_tensors: got 10001, max 10000",
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

// FuzzValidateTensorName ensures name validation never panics.
func FuzzValidateTensorName(f *testing.F) {
	f.Add("encoder.embedding.weight")
	f.Add("../etc/passwd")
	f.Add("a\x00b")
	f.Fuzz(func(t *testing.T, name string) {
		_ = ValidateTensorName(name)
	})
}
