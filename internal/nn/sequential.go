package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Sequential chains single-input modules: each output feeds the next module.
//
//	combine := nn.NewSequential[B](
//	    nn.NewLinear(2*hidden, hidden, backend, rng),
//	    nn.NewTanh[B](),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Forward applies all modules in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns the parameters of every module, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Train forwards the mode to every module that has one.
func (s *Sequential[B]) Train(training bool) {
	for _, module := range s.modules {
		if m, ok := module.(Trainable); ok {
			m.Train(training)
		}
	}
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index. Panics if out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}
