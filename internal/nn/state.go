package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// State errors.
var (
	// ErrStateShape reports an LSTM state whose shape does not match the
	// layer it is fed to.
	ErrStateShape = errors.New("invalid recurrent state shape")

	// ErrLayoutMismatch reports a state that cannot be bridged between an
	// encoder layout and a decoder.
	ErrLayoutMismatch = errors.New("recurrent state layout mismatch")
)

// LSTMState is the (hidden, cell) pair, each [layers*directions, batch, hidden].
type LSTMState[B tensor.Backend] struct {
	H *tensor.Tensor[float32, B]
	C *tensor.Tensor[float32, B]
}

// Validate checks that H and C are both [slots, batch, hidden].
func (s LSTMState[B]) Validate(slots, batch, hidden int) error {
	if s.H == nil || s.C == nil {
		return fmt.Errorf("%w: missing hidden or cell tensor", ErrStateShape)
	}
	want := tensor.Shape{slots, batch, hidden}
	if !s.H.Shape().Equal(want) || !s.C.Shape().Equal(want) {
		return fmt.Errorf("%w: got h %v, c %v, want %v", ErrStateShape, s.H.Shape(), s.C.Shape(), want)
	}
	return nil
}

// Detach returns a copy that is cut off from the recorded graph.
func (s LSTMState[B]) Detach() LSTMState[B] {
	return LSTMState[B]{H: s.H.Detach(), C: s.C.Detach()}
}

// StateLayout describes how an LSTM lays out its state tensors.
type StateLayout struct {
	NumLayers     int
	NumDirections int
	HiddenSize    int // Per direction
}

// Slots returns the leading state dimension, NumLayers*NumDirections.
func (l StateLayout) Slots() int {
	return l.NumLayers * l.NumDirections
}

// Bridged returns the layout after BridgeState: one direction whose hidden
// size is the concatenation of all directions.
func (l StateLayout) Bridged() StateLayout {
	return StateLayout{NumLayers: l.NumLayers, NumDirections: 1, HiddenSize: l.NumDirections * l.HiddenSize}
}

// ZeroState returns an all-zero state for layout and batch.
func ZeroState[B tensor.Backend](layout StateLayout, batch int, backend B) LSTMState[B] {
	shape := tensor.Shape{layout.Slots(), batch, layout.HiddenSize}
	return LSTMState[B]{
		H: tensor.Zeros[float32](shape, backend),
		C: tensor.Zeros[float32](shape, backend),
	}
}

// BridgeState turns an encoder state laid out as layout, [L*D, B, h], into a
// unidirectional state [L, B, D*h] by concatenating every layer's direction
// slices along the feature axis, forward direction first.
//
// The conversion always runs and never guesses from the leading dimension:
// a state that does not match layout is an error.
func BridgeState[B tensor.Backend](state LSTMState[B], layout StateLayout) (LSTMState[B], error) {
	if layout.NumLayers < 1 || layout.NumDirections < 1 {
		return LSTMState[B]{}, fmt.Errorf("%w: layout %+v", ErrLayoutMismatch, layout)
	}
	if state.H == nil || len(state.H.Shape()) != 3 {
		return LSTMState[B]{}, fmt.Errorf("%w: expected a 3D hidden tensor", ErrStateShape)
	}
	batch := state.H.Shape()[1]
	if err := state.Validate(layout.Slots(), batch, layout.HiddenSize); err != nil {
		return LSTMState[B]{}, err
	}
	if layout.NumDirections == 1 {
		return state, nil
	}
	return LSTMState[B]{
		H: bridge(state.H, layout),
		C: bridge(state.C, layout),
	}, nil
}

func bridge[B tensor.Backend](x *tensor.Tensor[float32, B], layout StateLayout) *tensor.Tensor[float32, B] {
	layers := make([]*tensor.Tensor[float32, B], layout.NumLayers)
	for l := range layers {
		dirs := make([]*tensor.Tensor[float32, B], layout.NumDirections)
		for d := range dirs {
			dirs[d] = x.Narrow(0, l*layout.NumDirections+d, 1)
		}
		layers[l] = tensor.Cat(dirs, 2)
	}
	if len(layers) == 1 {
		return layers[0]
	}
	return tensor.Cat(layers, 0)
}

// ReshapeState converts a single-layer bidirectional state (2, B, H) into
// (1, B, 2H) by concatenating the forward and reverse slices.
func ReshapeState[B tensor.Backend](state LSTMState[B]) (LSTMState[B], error) {
	if state.H == nil || len(state.H.Shape()) != 3 {
		return LSTMState[B]{}, fmt.Errorf("%w: expected a 3D state", ErrStateShape)
	}
	shape := state.H.Shape()
	if shape[0] != 2 {
		return LSTMState[B]{}, fmt.Errorf("%w: expected leading dimension 2, got %v", ErrStateShape, shape)
	}
	return BridgeState(state, StateLayout{NumLayers: 1, NumDirections: 2, HiddenSize: shape[2]})
}
