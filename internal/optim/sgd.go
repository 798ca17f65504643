package optim

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]]*tensor.RawTensor
	backend    B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.RawTensor),
		backend:    backend,
	}
}

// Step performs a single optimization step.
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		p := vector(param.Tensor().Raw())
		g := vector(grad)
		if s.momentum == 0 {
			blas32.Axpy(-s.lr, g, p)
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = tensor.MustNewRaw(param.Tensor().Shape(), tensor.Float32, s.backend.Device())
			s.velocities[param] = velocity
		}
		vel := vector(velocity)
		blas32.Scal(s.momentum, vel)
		blas32.Axpy(1, g, vel)
		blas32.Axpy(-s.lr, vel, p)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the momentum buffers keyed "velocity.{param_name}".
// Without momentum, returns an empty map.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return state
	}
	for _, param := range s.params {
		if velocity, ok := s.velocities[param]; ok {
			state["velocity."+param.Name()] = velocity.Clone()
		}
	}
	return state
}

// LoadStateDict restores momentum buffers. If momentum is 0 the provided
// state is ignored.
func (s *SGD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	velocities := make(map[*nn.Parameter[B]]*tensor.RawTensor)
	for _, param := range s.params {
		key := "velocity." + param.Name()
		raw, ok := state[key]
		if !ok {
			continue
		}
		buf, err := loadBuffer(param, key, raw)
		if err != nil {
			return err
		}
		velocities[param] = buf
	}
	s.velocities = velocities
	return nil
}

// vector views float32 tensor storage as a unit-stride BLAS vector.
func vector(r *tensor.RawTensor) blas32.Vector {
	data := r.AsFloat32()
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}
