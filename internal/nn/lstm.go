package nn

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// LSTMCell is a single LSTM step with gate order (i, f, g, o):
//
//	gates = x @ W_ih.T + b_ih + h @ W_hh.T + b_hh
//	c'    = σ(f) * c + σ(i) * tanh(g)
//	h'    = σ(o) * tanh(c')
type LSTMCell[B tensor.Backend] struct {
	WeightIH *Parameter[B] // [4H, in]
	WeightHH *Parameter[B] // [4H, H]
	BiasIH   *Parameter[B] // [4H]
	BiasHH   *Parameter[B] // [4H]

	inputSize  int
	hiddenSize int
}

// NewLSTMCell creates a cell with weights and biases drawn from
// U(-1/sqrt(hidden), 1/sqrt(hidden)).
func NewLSTMCell[B tensor.Backend](inputSize, hiddenSize int, backend B, rng *rand.Rand) *LSTMCell[B] {
	g := 4 * hiddenSize
	return &LSTMCell[B]{
		WeightIH:   NewParameter("weight_ih", UniformHidden(hiddenSize, tensor.Shape{g, inputSize}, backend, rng)),
		WeightHH:   NewParameter("weight_hh", UniformHidden(hiddenSize, tensor.Shape{g, hiddenSize}, backend, rng)),
		BiasIH:     NewParameter("bias_ih", UniformHidden(hiddenSize, tensor.Shape{g}, backend, rng)),
		BiasHH:     NewParameter("bias_hh", UniformHidden(hiddenSize, tensor.Shape{g}, backend, rng)),
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
	}
}

// Forward runs one step for x [batch, in] and state h, c [batch, H].
func (c *LSTMCell[B]) Forward(x, h, cell *tensor.Tensor[float32, B]) (hNext, cNext *tensor.Tensor[float32, B]) {
	return c.step(c.project(x), h, cell, c.WeightHH.Tensor().T())
}

// Parameters returns the cell weights and biases.
func (c *LSTMCell[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.WeightIH, c.WeightHH, c.BiasIH, c.BiasHH}
}

// project computes the input half of the gates, both biases included, for
// every row of x [N, in] at once.
func (c *LSTMCell[B]) project(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if x.Shape()[1] != c.inputSize {
		panic(fmt.Sprintf("LSTMCell: expected input with %d features, got %v", c.inputSize, x.Shape()))
	}
	bias := c.BiasIH.Tensor().Add(c.BiasHH.Tensor()).Reshape(1, 4*c.hiddenSize)
	return x.MatMul(c.WeightIH.Tensor().T()).Add(bias)
}

// step finishes the gates from a projected input gx [b, 4H].
func (c *LSTMCell[B]) step(gx, h, cell, whhT *tensor.Tensor[float32, B]) (hNext, cNext *tensor.Tensor[float32, B]) {
	hs := c.hiddenSize
	gates := gx.Add(h.MatMul(whhT))

	i := gates.Narrow(1, 0, hs).Sigmoid()
	f := gates.Narrow(1, hs, hs).Sigmoid()
	g := gates.Narrow(1, 2*hs, hs).Tanh()
	o := gates.Narrow(1, 3*hs, hs).Sigmoid()

	cNext = f.Mul(cell).Add(i.Mul(g))
	hNext = o.Mul(cNext.Tanh())
	return hNext, cNext
}

// LSTMConfig configures a (possibly stacked, possibly bidirectional) LSTM.
type LSTMConfig struct {
	InputSize     int
	HiddenSize    int     // Per direction
	NumLayers     int     // Default: 1
	Bidirectional bool    // Adds a reverse-time direction to every layer
	Dropout       float32 // Applied between stacked layers in training mode
}

// LSTM runs stacked LSTM layers over packed or dense batches.
//
// States are [NumLayers*NumDirections, batch, HiddenSize], layer-major and
// direction-minor: index l*D + d holds layer l, direction d (0 forward,
// 1 reverse).
type LSTM[B tensor.Backend] struct {
	cfg     LSTMConfig
	cells   [][]*LSTMCell[B] // [layer][direction]
	dropout *Dropout[B]      // nil without inter-layer dropout
	backend B
}

// NewLSTM creates a stacked LSTM.
func NewLSTM[B tensor.Backend](cfg LSTMConfig, backend B, rng *rand.Rand) *LSTM[B] {
	if cfg.NumLayers == 0 {
		cfg.NumLayers = 1
	}
	if cfg.InputSize <= 0 || cfg.HiddenSize <= 0 || cfg.NumLayers < 0 {
		panic(fmt.Sprintf("NewLSTM: invalid config %+v", cfg))
	}

	l := &LSTM[B]{cfg: cfg, backend: backend}
	dirs := l.Layout().NumDirections
	for layer := 0; layer < cfg.NumLayers; layer++ {
		in := cfg.InputSize
		if layer > 0 {
			in = cfg.HiddenSize * dirs
		}
		row := make([]*LSTMCell[B], dirs)
		for d := range row {
			row[d] = NewLSTMCell(in, cfg.HiddenSize, backend, rng)
			suffix := fmt.Sprintf("l%d", layer)
			if d == 1 {
				suffix += "_reverse"
			}
			for _, p := range row[d].Parameters() {
				p.name += "_" + suffix
			}
		}
		l.cells = append(l.cells, row)
	}
	if cfg.Dropout > 0 && cfg.NumLayers > 1 {
		l.dropout = NewDropout(cfg.Dropout, backend, rng)
	}
	return l
}

// Layout reports the state layout produced and consumed by this LSTM.
func (l *LSTM[B]) Layout() StateLayout {
	dirs := 1
	if l.cfg.Bidirectional {
		dirs = 2
	}
	return StateLayout{NumLayers: l.cfg.NumLayers, NumDirections: dirs, HiddenSize: l.cfg.HiddenSize}
}

// Config returns the LSTM configuration.
func (l *LSTM[B]) Config() LSTMConfig {
	return l.cfg
}

// Train switches inter-layer dropout between training and evaluation.
func (l *LSTM[B]) Train(training bool) {
	if l.dropout != nil {
		l.dropout.Train(training)
	}
}

// Parameters returns every cell's parameters, layer by layer.
func (l *LSTM[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, row := range l.cells {
		for _, c := range row {
			params = append(params, c.Parameters()...)
		}
	}
	return params
}

// Forward runs over a dense batch x [batch, time, in] in which every
// sequence has full length. A nil state starts from zeros.
// Returns outputs [batch, time, D*H] and the final state.
func (l *LSTM[B]) Forward(x *tensor.Tensor[float32, B], state *LSTMState[B]) (*tensor.Tensor[float32, B], LSTMState[B], error) {
	shape := x.Shape()
	if len(shape) != 3 {
		return nil, LSTMState[B]{}, fmt.Errorf("lstm: expected [batch, time, features], got %v", shape)
	}
	packed, err := Pack(x, FullLengths(shape[0], shape[1]))
	if err != nil {
		return nil, LSTMState[B]{}, err
	}
	out, final, err := l.ForwardPacked(packed, state)
	if err != nil {
		return nil, LSTMState[B]{}, err
	}
	dense, _ := Unpack(out, shape[1], l.backend)
	return dense, final, nil
}

// ForwardPacked runs over a packed batch. Each sequence's recurrence stops at
// its own length, so its final state is taken at its last real token and
// padding never enters the computation. A nil state starts from zeros;
// otherwise it must match Layout and the batch size, in original batch order.
func (l *LSTM[B]) ForwardPacked(p *PackedSequence[B], state *LSTMState[B]) (*PackedSequence[B], LSTMState[B], error) {
	layout := l.Layout()
	batch := p.BatchSize()

	var init LSTMState[B]
	if state == nil {
		init = ZeroState(layout, batch, l.backend)
	} else {
		if err := state.Validate(layout.NumLayers*layout.NumDirections, batch, layout.HiddenSize); err != nil {
			return nil, LSTMState[B]{}, fmt.Errorf("lstm: %w", err)
		}
		init = *state
		if !isIdentity(p.SortedIndices) {
			init = LSTMState[B]{H: init.H.IndexSelect(1, p.SortedIndices), C: init.C.IndexSelect(1, p.SortedIndices)}
		}
	}

	offsets := p.Offsets()
	data := p.Data
	var finalH, finalC []*tensor.Tensor[float32, B]
	for layer, row := range l.cells {
		if layer > 0 && l.dropout != nil {
			data = l.dropout.Forward(data)
		}
		outs := make([]*tensor.Tensor[float32, B], len(row))
		for d, cell := range row {
			idx := layer*layout.NumDirections + d
			h0, c0 := init.H.Select(0, idx), init.C.Select(0, idx)
			var hN, cN *tensor.Tensor[float32, B]
			if d == 0 {
				outs[d], hN, cN = runForward(cell, data, p.BatchSizes, offsets, h0, c0)
			} else {
				outs[d], hN, cN = runReverse(cell, data, p.BatchSizes, offsets, h0, c0)
			}
			finalH = append(finalH, hN)
			finalC = append(finalC, cN)
		}
		if len(outs) == 1 {
			data = outs[0]
		} else {
			data = tensor.Cat(outs, 1)
		}
	}

	final := LSTMState[B]{H: tensor.Stack(finalH, 0), C: tensor.Stack(finalC, 0)}
	if !isIdentity(p.UnsortedIndices) {
		final = LSTMState[B]{H: final.H.IndexSelect(1, p.UnsortedIndices), C: final.C.IndexSelect(1, p.UnsortedIndices)}
	}
	return p.WithData(data), final, nil
}

// runForward walks time forwards. The batch shrinks as sequences end; rows
// that drop out hold their final state.
func runForward[B tensor.Backend](
	cell *LSTMCell[B],
	data *tensor.Tensor[float32, B],
	batchSizes, offsets []int,
	h, c *tensor.Tensor[float32, B],
) (out, hN, cN *tensor.Tensor[float32, B]) {
	gx := cell.project(data)
	whhT := cell.WeightHH.Tensor().T()

	steps := make([]*tensor.Tensor[float32, B], len(batchSizes))
	var doneH, doneC []*tensor.Tensor[float32, B]
	for t, bs := range batchSizes {
		if rows := h.Shape()[0]; bs < rows {
			doneH = append(doneH, h.Narrow(0, bs, rows-bs))
			doneC = append(doneC, c.Narrow(0, bs, rows-bs))
			h, c = h.Narrow(0, 0, bs), c.Narrow(0, 0, bs)
		}
		h, c = cell.step(gx.Narrow(0, offsets[t], bs), h, c, whhT)
		steps[t] = h
	}

	// Earlier drop-outs are the shorter sequences; reversed, the rows follow
	// the batch's descending-length order.
	slices.Reverse(doneH)
	slices.Reverse(doneC)
	hN = tensor.Cat(append([]*tensor.Tensor[float32, B]{h}, doneH...), 0)
	cN = tensor.Cat(append([]*tensor.Tensor[float32, B]{c}, doneC...), 0)
	return tensor.Cat(steps, 0), hN, cN
}

// runReverse walks time backwards. The batch grows as earlier-ending
// sequences join at their last token, each starting from its own initial
// state row.
func runReverse[B tensor.Backend](
	cell *LSTMCell[B],
	data *tensor.Tensor[float32, B],
	batchSizes, offsets []int,
	h0, c0 *tensor.Tensor[float32, B],
) (out, hN, cN *tensor.Tensor[float32, B]) {
	gx := cell.project(data)
	whhT := cell.WeightHH.Tensor().T()

	last := len(batchSizes) - 1
	h, c := h0.Narrow(0, 0, batchSizes[last]), c0.Narrow(0, 0, batchSizes[last])
	steps := make([]*tensor.Tensor[float32, B], len(batchSizes))
	for t := last; t >= 0; t-- {
		bs := batchSizes[t]
		if rows := h.Shape()[0]; bs > rows {
			h = tensor.Cat([]*tensor.Tensor[float32, B]{h, h0.Narrow(0, rows, bs-rows)}, 0)
			c = tensor.Cat([]*tensor.Tensor[float32, B]{c, c0.Narrow(0, rows, bs-rows)}, 0)
		}
		h, c = cell.step(gx.Narrow(0, offsets[t], bs), h, c, whhT)
		steps[t] = h
	}
	return tensor.Cat(steps, 0), h, c
}
