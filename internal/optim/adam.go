package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int                                    // Timestep for bias correction
	m       map[*nn.Parameter[B]]*tensor.RawTensor // First moment estimates
	v       map[*nn.Parameter[B]]*tensor.RawTensor // Second moment estimates
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer. Zero config fields take the defaults
// LR 0.001, betas (0.9, 0.999) and eps 1e-8.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.RawTensor),
		v:       make(map[*nn.Parameter[B]]*tensor.RawTensor),
		backend: backend,
	}
}

// Step performs a single optimization step. Parameters with no gradient are
// skipped but still advance the shared timestep.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.MustNewRaw(param.Tensor().Shape(), tensor.Float32, a.backend.Device())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.MustNewRaw(param.Tensor().Shape(), tensor.Float32, a.backend.Device())
			a.v[param] = v
		}

		a.updateParameter(param, grad, m, v, biasCorrection1, biasCorrection2)
	}
}

func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	grad, m, v *tensor.RawTensor,
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.AsFloat32()
	mData := m.AsFloat32()
	vData := v.AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()

	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2
		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict exports the moment buffers and the timestep.
//
// State keys: "step", "m.{param_name}" and "v.{param_name}". Buffers are
// copies, so later steps do not change an exported state.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(a.m)+1)

	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, a.backend.Device())
	step.AsInt32()[0] = int32(a.t) //nolint:gosec // step counts stay far below 2^31
	state["step"] = step

	for _, param := range a.params {
		if m, ok := a.m[param]; ok {
			state["m."+param.Name()] = m.Clone()
		}
		if v, ok := a.v[param]; ok {
			state["v."+param.Name()] = v.Clone()
		}
	}
	return state
}

// LoadStateDict restores state produced by StateDict. Parameters without
// saved moments start from zero on their next step.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	step, ok := state["step"]
	if !ok || step.DType() != tensor.Int32 || step.NumElements() != 1 {
		return fmt.Errorf("%w: missing adam step", ErrStateMismatch)
	}

	m := make(map[*nn.Parameter[B]]*tensor.RawTensor)
	v := make(map[*nn.Parameter[B]]*tensor.RawTensor)
	for _, param := range a.params {
		for prefix, dst := range map[string]map[*nn.Parameter[B]]*tensor.RawTensor{"m.": m, "v.": v} {
			key := prefix + param.Name()
			raw, ok := state[key]
			if !ok {
				continue
			}
			buf, err := loadBuffer(param, key, raw)
			if err != nil {
				return err
			}
			dst[param] = buf
		}
		if (m[param] == nil) != (v[param] == nil) {
			return fmt.Errorf("%w: parameter %s has only one adam moment", ErrStateMismatch, param.Name())
		}
	}

	a.t = int(step.AsInt32()[0])
	a.m = m
	a.v = v
	return nil
}
