// Package train fits a seq2seq model to a parallel corpus.
//
// Each step feeds the target prefix (<sos> onwards) to the decoder, scores
// the logits against the target shifted by one with <pad> ignored, clips the
// global gradient norm and updates the weights. After every epoch the model
// greedily decodes the validation set and the checkpoint with the lowest
// token error rate is kept.
package train

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// ErrNonFiniteLoss is returned when a training step produces NaN or Inf.
var ErrNonFiniteLoss = errors.New("loss is not finite")

// Options configures a Trainer.
type Options struct {
	Epochs       int
	Optimizer    optim.Config
	ClipNorm     float64 // 0 disables clipping
	LogEvery     int     // Batches between progress lines, 0 for per-epoch only
	MaxDecodeLen int     // Validation decoding limit (default: 50)
	Output       string  // Best checkpoint path, empty to skip saving
}

// EpochStats summarizes one epoch.
type EpochStats struct {
	Epoch          int
	TrainLoss      float64 // Token-weighted mean
	ValidLoss      float64
	ValidErrorRate float64 // NaN without validation data
	LR             float32
	Saved          bool
	Duration       time.Duration
}

// Trainer owns the optimizer and the training counters of one model.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *seq2seq.Model[B]
	opt       optim.Optimizer
	criterion *nn.CrossEntropyLoss[B]
	opts      Options
	logger    *log.Logger

	source, target *tokenizer.Vocab

	epoch int
	step  int64
	best  float64
}

// New creates a trainer for model. A nil logger logs to log.Default().
func New[B autodiff.BackwardCapable](model *seq2seq.Model[B], opts Options, logger *log.Logger) (*Trainer[B], error) {
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", opts.Epochs)
	}
	if opts.MaxDecodeLen <= 0 {
		opts.MaxDecodeLen = 50
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := optim.New(model.Parameters(), opts.Optimizer, model.Backend())
	if err != nil {
		return nil, err
	}
	return &Trainer[B]{
		model:     model,
		opt:       opt,
		criterion: nn.NewCrossEntropyLoss(model.Backend(), model.Config().PaddingIdx),
		opts:      opts,
		logger:    logger,
		best:      math.Inf(1),
	}, nil
}

// SetVocabularies records the vocabularies saved with each checkpoint.
func (t *Trainer[B]) SetVocabularies(source, target *tokenizer.Vocab) {
	t.source, t.target = source, target
}

// Optimizer returns the optimizer, e.g. to adjust its learning rate.
func (t *Trainer[B]) Optimizer() optim.Optimizer {
	return t.opt
}

// Step returns the number of optimizer steps taken.
func (t *Trainer[B]) Step() int64 {
	return t.step
}

// Restore continues from a checkpoint written by this package: optimizer
// state, counters and the best validation score.
func (t *Trainer[B]) Restore(ckpt seq2seq.Checkpoint) error {
	if ckpt.Optimizer != nil {
		if err := t.opt.LoadStateDict(ckpt.Optimizer); err != nil {
			return fmt.Errorf("restore optimizer: %w", err)
		}
	}
	if m := ckpt.Training; m != nil {
		t.epoch = m.Epoch
		t.step = m.Step
		if m.ValidErrorRate >= 0 {
			t.best = m.ValidErrorRate
		}
	}
	return nil
}

// TrainStep runs one forward/backward/update on batch and returns the loss
// and the gradient norm before clipping.
func (t *Trainer[B]) TrainStep(batch data.Batch[B]) (loss float32, gradNorm float64, err error) {
	backend := t.model.Backend()
	tape := backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	t.model.Train(true)
	logits, _, err := t.model.Forward(batch.Source, batch.Lengths, batch.DecoderInput(), nil)
	if err != nil {
		return 0, 0, err
	}
	lossT := t.criterion.Forward(logits, batch.Gold())
	loss = lossT.Item()
	if math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
		return 0, 0, fmt.Errorf("step %d: %w (%v)", t.step, ErrNonFiniteLoss, loss)
	}

	grads := autodiff.Backward(lossT, backend)
	tape.StopRecording()

	params := t.model.Parameters()
	gradNorm, grads = optim.ClipGradNorm(params, grads, t.opts.ClipNorm)
	t.opt.Step(grads)
	t.opt.ZeroGrad()
	t.step++
	return loss, gradNorm, nil
}

// TrainEpoch runs TrainStep over every batch and returns the token-weighted
// mean loss.
func (t *Trainer[B]) TrainEpoch(ctx context.Context, batches []data.Batch[B]) (float64, error) {
	losses := make([]float64, 0, len(batches))
	weights := make([]float64, 0, len(batches))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		loss, norm, err := t.TrainStep(batch)
		if err != nil {
			return 0, err
		}
		losses = append(losses, float64(loss))
		weights = append(weights, float64(goldTokens(batch)))
		if t.opts.LogEvery > 0 && (i+1)%t.opts.LogEvery == 0 {
			t.logger.Printf("epoch %d batch %d/%d loss=%.4f grad_norm=%.3f", t.epoch+1, i+1, len(batches), loss, norm)
		}
	}
	if len(losses) == 0 {
		return 0, nil
	}
	return stat.Mean(losses, weights), nil
}

// Evaluate scores batches in evaluation mode: the teacher-forced loss and
// the token error rate of greedy decoding against the references.
func (t *Trainer[B]) Evaluate(batches []data.Batch[B]) (loss, errorRate float64, err error) {
	t.model.Train(false)
	defer t.model.Train(true)

	var losses, weights []float64
	var hyps, refs [][]int32
	for _, batch := range batches {
		logits, _, err := t.model.Forward(batch.Source, batch.Lengths, batch.DecoderInput(), nil)
		if err != nil {
			return 0, 0, err
		}
		losses = append(losses, float64(t.criterion.Forward(logits, batch.Gold()).Item()))
		weights = append(weights, float64(goldTokens(batch)))

		decoded, err := generate.GreedyBatch(t.model, batch.Source, batch.Lengths, t.opts.MaxDecodeLen)
		if err != nil {
			return 0, 0, err
		}
		hyps = append(hyps, decoded...)
		refs = append(refs, references(batch)...)
	}
	if len(losses) == 0 {
		return math.NaN(), math.NaN(), nil
	}
	return stat.Mean(losses, weights), ErrorRate(hyps, refs), nil
}

// Fit trains for the configured number of epochs, validating after each
// one. valid may be nil or empty, in which case the last epoch is saved.
func (t *Trainer[B]) Fit(ctx context.Context, trainData, valid *data.Batcher[B]) ([]EpochStats, error) {
	var history []EpochStats
	var validBatches []data.Batch[B]
	if valid != nil {
		validBatches = valid.Epoch()
		if len(validBatches) == 0 {
			t.logger.Printf("warning: validation set is empty, saving every epoch")
			valid = nil
		}
	}

	for t.epoch < t.opts.Epochs {
		start := time.Now()
		trainLoss, err := t.TrainEpoch(ctx, trainData.Epoch())
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", t.epoch+1, err)
		}
		t.epoch++

		stats := EpochStats{
			Epoch:          t.epoch,
			TrainLoss:      trainLoss,
			ValidLoss:      math.NaN(),
			ValidErrorRate: math.NaN(),
			LR:             t.opt.GetLR(),
		}
		improved := valid == nil
		if valid != nil {
			stats.ValidLoss, stats.ValidErrorRate, err = t.Evaluate(validBatches)
			if err != nil {
				return history, fmt.Errorf("epoch %d validation: %w", t.epoch, err)
			}
			improved = stats.ValidErrorRate < t.best
			if improved {
				t.best = stats.ValidErrorRate
			}
		}

		if improved && t.opts.Output != "" {
			if err := t.Save(t.opts.Output, stats); err != nil {
				return history, err
			}
			stats.Saved = true
		}
		stats.Duration = time.Since(start)
		history = append(history, stats)

		t.logger.Printf("epoch %d/%d train_loss=%.4f valid_loss=%.4f valid_err=%.4f lr=%g saved=%t (%s)",
			stats.Epoch, t.opts.Epochs, stats.TrainLoss, stats.ValidLoss, stats.ValidErrorRate,
			stats.LR, stats.Saved, stats.Duration.Round(time.Millisecond))
	}
	return history, nil
}

// Save writes a checkpoint with the optimizer state and stats.
func (t *Trainer[B]) Save(path string, stats EpochStats) error {
	kind := t.opts.Optimizer.Kind
	if kind == "" {
		kind = optim.KindAdam
	}
	ckpt := seq2seq.Checkpoint{
		SourceVocab: t.source,
		TargetVocab: t.target,
		Training: &serialization.CheckpointMeta{
			Epoch:           stats.Epoch,
			Step:            t.step,
			Loss:            stats.TrainLoss,
			ValidErrorRate:  finiteOr(stats.ValidErrorRate, -1),
			OptimizerType:   string(kind),
			OptimizerConfig: t.opts.Optimizer.Hyperparameters(),
		},
		Optimizer: t.opt.StateDict(),
	}
	if err := seq2seq.SaveCheckpoint(path, t.model, ckpt); err != nil {
		return err
	}
	t.logger.Printf("saved checkpoint %s", path)
	return nil
}

// goldTokens counts the non-pad prediction targets of batch.
func goldTokens[B autodiff.BackwardCapable](batch data.Batch[B]) int {
	n := 0
	for _, id := range batch.Gold().Data() {
		if id != tokenizer.PadID {
			n++
		}
	}
	return n
}

// references extracts each target row between <sos> and <eos>.
func references[B autodiff.BackwardCapable](batch data.Batch[B]) [][]int32 {
	ids := batch.Target.Data()
	width := batch.Target.Shape()[1]
	refs := make([][]int32, batch.Size())
	for row := range refs {
		for _, id := range ids[row*width+1 : (row+1)*width] {
			if id == tokenizer.EOSID || id == tokenizer.PadID {
				break
			}
			refs[row] = append(refs[row], id)
		}
	}
	return refs
}

// finiteOr replaces NaN (JSON cannot encode it) with fallback.
func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
