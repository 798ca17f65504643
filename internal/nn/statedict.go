package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// StateDict maps every parameter name to its raw tensor. Names must be
// unique; use UniqueParameters first when weights are tied.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		if _, dup := dict[p.name]; dup {
			panic(fmt.Sprintf("StateDict: duplicate parameter name %q", p.name))
		}
		dict[p.name] = p.tensor.Raw()
	}
	return dict
}

// LoadStateDict copies tensors from dict into params by name. Every parameter
// must be present with a matching shape and float32 dtype.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], dict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		raw, ok := dict[p.name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.name)
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", p.name, raw.DType())
		}
		if want := p.tensor.Shape(); !raw.Shape().Equal(want) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.name, want, raw.Shape())
		}
		copy(p.tensor.Data(), raw.AsFloat32())
	}
	return nil
}
