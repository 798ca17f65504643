package optim_test

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func newParam(t *testing.T, backend testBackend, name string, values ...float32) *nn.Parameter[testBackend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return nn.NewParameter(name, x)
}

func gradOf(backend testBackend, values ...float32) *tensor.RawTensor {
	g := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, backend.Device())
	copy(g.AsFloat32(), values)
	return g
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", 2.0)

	opt := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1}, backend)
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): gradOf(backend, 1.0)})

	// x = 2.0 - 0.1 * 1.0
	if got := param.Tensor().Raw().AsFloat32()[0]; !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", got)
	}
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", 1.0)
	opt := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v_1 = 1.0, x_1 = 0.9; v_2 = 1.9, x_2 = 0.71
	for i, want := range []float32{0.9, 0.71} {
		opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): gradOf(backend, 1.0)})
		if got := param.Tensor().Raw().AsFloat32()[0]; !floatEqual(got, want, 1e-5) {
			t.Errorf("step %d: got %f, want %f", i+1, got, want)
		}
	}
}

func TestSGD_SkipsMissingGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := newParam(t, backend, "a", 1.0, 2.0)
	b := newParam(t, backend, "b", 3.0)

	opt := optim.NewSGD([]*nn.Parameter[testBackend]{a, b}, optim.SGDConfig{LR: 0.1}, backend)
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{a.Tensor().Raw(): gradOf(backend, 1.0, 2.0)})

	got := a.Tensor().Raw().AsFloat32()
	if !floatEqual(got[0], 0.9, 1e-6) || !floatEqual(got[1], 1.8, 1e-6) {
		t.Errorf("a: got %v, want [0.9 1.8]", got)
	}
	if got := b.Tensor().Raw().AsFloat32()[0]; got != 3.0 {
		t.Errorf("b without gradient changed to %f", got)
	}
}

func TestSGD_ZeroGradAndLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", 1.0)
	grad, _ := tensor.FromSlice([]float32{5.0}, tensor.Shape{1}, backend)
	param.SetGrad(grad)

	opt := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.01}, backend)
	opt.ZeroGrad()
	if param.Grad() != nil {
		t.Error("Grad should be nil after ZeroGrad")
	}

	opt.SetLR(0.001)
	if opt.GetLR() != 0.001 {
		t.Errorf("GetLR after SetLR: got %f, want 0.001", opt.GetLR())
	}
}

func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "x", 1.0)
	opt := optim.NewAdam([]*nn.Parameter[testBackend]{param}, optim.AdamConfig{}, backend)

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): gradOf(backend, 1.0)})

	// Bias-corrected moments are both 1 after one step, so x moves by lr.
	if got := param.Tensor().Raw().AsFloat32()[0]; !floatEqual(got, 0.999, 1e-5) {
		t.Errorf("Adam step: got %f, want 0.999", got)
	}
	if opt.GetTimestep() != 1 {
		t.Errorf("timestep: got %d, want 1", opt.GetTimestep())
	}
}

func TestConvergence_SimpleQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	build := map[string]func(p *nn.Parameter[testBackend]) optim.Optimizer{
		"SGD": func(p *nn.Parameter[testBackend]) optim.Optimizer {
			return optim.NewSGD([]*nn.Parameter[testBackend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
		},
		"Adam": func(p *nn.Parameter[testBackend]) optim.Optimizer {
			return optim.NewAdam([]*nn.Parameter[testBackend]{p}, optim.AdamConfig{LR: 0.1}, backend)
		},
	}

	for name, newOpt := range build {
		t.Run(name, func(t *testing.T) {
			param := newParam(t, backend, "x", 3.0)
			opt := newOpt(param)

			// f(x) = x², df/dx = 2x
			for range 100 {
				x := param.Tensor().Raw().AsFloat32()[0]
				opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): gradOf(backend, 2*x)})
			}

			if final := param.Tensor().Raw().AsFloat32()[0]; math.Abs(float64(final)) > 0.1 {
				t.Errorf("x = %f, expected close to 0", final)
			}
		})
	}
}

func TestAdam_StateDictResumes(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// Two optimizers fed the same gradients must agree after one of them is
	// restored from the other's state halfway through.
	ref := newParam(t, backend, "w", 1.0, -1.0)
	refOpt := optim.NewAdam([]*nn.Parameter[testBackend]{ref}, optim.AdamConfig{LR: 0.05}, backend)

	grads := [][]float32{{0.5, -0.2}, {0.1, 0.3}, {-0.4, 0.2}, {0.2, 0.2}}
	for _, g := range grads[:2] {
		refOpt.Step(map[*tensor.RawTensor]*tensor.RawTensor{ref.Tensor().Raw(): gradOf(backend, g...)})
	}

	state := refOpt.StateDict()
	for _, key := range []string{"step", "m.w", "v.w"} {
		if _, ok := state[key]; !ok {
			t.Fatalf("state missing %q", key)
		}
	}

	resumed := newParam(t, backend, "w", ref.Tensor().Raw().AsFloat32()...)
	resumedOpt := optim.NewAdam([]*nn.Parameter[testBackend]{resumed}, optim.AdamConfig{LR: 0.05}, backend)
	if err := resumedOpt.LoadStateDict(state); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	if resumedOpt.GetTimestep() != 2 {
		t.Errorf("timestep: got %d, want 2", resumedOpt.GetTimestep())
	}

	for _, g := range grads[2:] {
		refOpt.Step(map[*tensor.RawTensor]*tensor.RawTensor{ref.Tensor().Raw(): gradOf(backend, g...)})
		resumedOpt.Step(map[*tensor.RawTensor]*tensor.RawTensor{resumed.Tensor().Raw(): gradOf(backend, g...)})
	}

	want := ref.Tensor().Raw().AsFloat32()
	got := resumed.Tensor().Raw().AsFloat32()
	for i := range want {
		if !floatEqual(got[i], want[i], 1e-6) {
			t.Errorf("w[%d]: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestAdam_LoadStateDictShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "w", 1.0, 2.0)
	opt := optim.NewAdam([]*nn.Parameter[testBackend]{param}, optim.AdamConfig{}, backend)

	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, backend.Device())
	state := map[string]*tensor.RawTensor{
		"step": step,
		"m.w":  gradOf(backend, 1.0),
		"v.w":  gradOf(backend, 1.0),
	}
	if err := opt.LoadStateDict(state); !errors.Is(err, optim.ErrStateMismatch) {
		t.Errorf("expected ErrStateMismatch, got %v", err)
	}
	if err := opt.LoadStateDict(map[string]*tensor.RawTensor{}); !errors.Is(err, optim.ErrStateMismatch) {
		t.Errorf("missing step: expected ErrStateMismatch, got %v", err)
	}
}

func TestSGD_StateDictKeyedByName(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := newParam(t, backend, "decoder.lstm.weight", 1.0)
	opt := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.5}, backend)
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): gradOf(backend, 2.0)})

	state := opt.StateDict()
	v, ok := state["velocity.decoder.lstm.weight"]
	if !ok {
		t.Fatalf("state keys: %v", state)
	}
	if got := v.AsFloat32()[0]; !floatEqual(got, 2.0, 1e-6) {
		t.Errorf("velocity: got %f, want 2.0", got)
	}

	other := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.5}, backend)
	if err := other.LoadStateDict(state); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	if got := other.StateDict()["velocity.decoder.lstm.weight"].AsFloat32()[0]; got != 2.0 {
		t.Errorf("restored velocity: got %f, want 2.0", got)
	}
}

func TestClipGradNorm(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := newParam(t, backend, "a", 0, 0)
	b := newParam(t, backend, "b", 0)
	params := []*nn.Parameter[testBackend]{a, b}

	ga := gradOf(backend, 3.0, 0.0)
	gb := gradOf(backend, 4.0)
	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		a.Tensor().Raw(): ga,
		b.Tensor().Raw(): gb,
	}

	total, clipped := optim.ClipGradNorm(params, grads, 1.0)
	if !floatEqual(float32(total), 5.0, 1e-5) {
		t.Errorf("norm: got %f, want 5", total)
	}

	ca := clipped[a.Tensor().Raw()].AsFloat32()
	cb := clipped[b.Tensor().Raw()].AsFloat32()
	if !floatEqual(ca[0], 0.6, 1e-5) || !floatEqual(cb[0], 0.8, 1e-5) {
		t.Errorf("clipped: got %v %v, want [0.6 0] [0.8]", ca, cb)
	}
	if ga.AsFloat32()[0] != 3.0 || gb.AsFloat32()[0] != 4.0 {
		t.Error("ClipGradNorm modified the input gradients")
	}
}

func TestClipGradNorm_BelowThreshold(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := newParam(t, backend, "a", 0)
	grads := map[*tensor.RawTensor]*tensor.RawTensor{a.Tensor().Raw(): gradOf(backend, 0.5)}

	total, out := optim.ClipGradNorm([]*nn.Parameter[testBackend]{a}, grads, 1.0)
	if !floatEqual(float32(total), 0.5, 1e-6) {
		t.Errorf("norm: got %f, want 0.5", total)
	}
	if out[a.Tensor().Raw()] != grads[a.Tensor().Raw()] {
		t.Error("gradients below the threshold should pass through unchanged")
	}
}

func TestNew(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{newParam(t, backend, "x", 1.0)}

	tests := []struct {
		cfg     optim.Config
		wantErr bool
		wantLR  float32
	}{
		{cfg: optim.Config{}, wantLR: 0.001},
		{cfg: optim.Config{Kind: optim.KindAdam, LR: 0.01}, wantLR: 0.01},
		{cfg: optim.Config{Kind: optim.KindSGD, LR: 0.5, Momentum: 0.9}, wantLR: 0.5},
		{cfg: optim.Config{Kind: optim.KindSGD, Momentum: 1.5}, wantErr: true},
		{cfg: optim.Config{Kind: "rmsprop"}, wantErr: true},
	}
	for _, tt := range tests {
		opt, err := optim.New(params, tt.cfg, backend)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%+v: expected error", tt.cfg)
			}
			continue
		}
		if err != nil {
			t.Errorf("%+v: %v", tt.cfg, err)
			continue
		}
		if opt.GetLR() != tt.wantLR {
			t.Errorf("%+v: lr %f, want %f", tt.cfg, opt.GetLR(), tt.wantLR)
		}
	}
}
