package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/config"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML or JSON configuration (defaults when empty)")
	trainPath := fs.String("train", "", "Training pairs, overrides data.train")
	validPath := fs.String("valid", "", "Validation pairs, overrides data.valid")
	output := fs.String("o", "", "Checkpoint path, overrides train.output")
	epochs := fs.Int("epochs", 0, "Epochs, overrides train.epochs")
	resume := fs.String("resume", "", "Continue training from this checkpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if *trainPath != "" {
		cfg.Data.TrainPath = *trainPath
	}
	if *validPath != "" {
		cfg.Data.ValidPath = *validPath
	}
	if *output != "" {
		cfg.Train.Output = *output
	}
	if *epochs > 0 {
		cfg.Train.Epochs = *epochs
	}
	if cfg.Data.TrainPath == "" {
		return fmt.Errorf("no training data: set data.train or -train")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pairs, err := data.LoadPairs(cfg.Data.TrainPath)
	if err != nil {
		return err
	}
	backend := autodiff.New(cpu.New())

	var (
		model          *seq2seq.Model[*autodiff.AutodiffBackend[*cpu.CPUBackend]]
		ckpt           seq2seq.Checkpoint
		source, target *tokenizer.Vocab
	)
	if *resume != "" {
		model, ckpt, err = seq2seq.LoadCheckpoint(*resume, backend)
		if err != nil {
			return err
		}
		source, target = ckpt.SourceVocab, ckpt.TargetVocab
		if source == nil || target == nil {
			return fmt.Errorf("%s has no vocabularies", *resume)
		}
		log.Printf("resuming from %s", *resume)
	} else {
		if source, err = tokenizer.BuildVocab(data.Sources(pairs), cfg.Data.Source); err != nil {
			return fmt.Errorf("source vocabulary: %w", err)
		}
		if target, err = tokenizer.BuildVocab(data.Targets(pairs), cfg.Data.Target); err != nil {
			return fmt.Errorf("target vocabulary: %w", err)
		}
		cfg.Model.PaddingIdx = int(source.PadToken())
		cfg.Model.SrcVocabSize = source.VocabSize()
		cfg.Model.TgtVocabSize = target.VocabSize()
		if model, err = seq2seq.NewModel(cfg.Model, backend); err != nil {
			return err
		}
	}
	log.Printf("vocabularies: source=%d target=%d", source.VocabSize(), target.VocabSize())

	examples, dropped, err := data.Encode(pairs, source, target, cfg.Data.MaxLen)
	if err != nil {
		return err
	}
	log.Printf("training pairs: %d (%d longer than %d dropped)", len(examples), dropped, cfg.Data.MaxLen)
	trainSet, err := data.NewBatcher(examples, data.BatcherConfig{
		BatchSize:    cfg.Train.BatchSize,
		Shuffle:      cfg.Train.Shuffle,
		Seed:         cfg.Train.Seed,
		SortByLength: true,
	}, backend)
	if err != nil {
		return err
	}

	var validSet *data.Batcher[*autodiff.AutodiffBackend[*cpu.CPUBackend]]
	if cfg.Data.ValidPath != "" {
		validPairs, err := data.LoadPairs(cfg.Data.ValidPath)
		if err != nil {
			return err
		}
		validExamples, _, err := data.Encode(validPairs, source, target, 0)
		if err != nil {
			return err
		}
		validSet, err = data.NewBatcher(validExamples, data.BatcherConfig{BatchSize: cfg.Train.BatchSize}, backend)
		if err != nil {
			return err
		}
		log.Printf("validation pairs: %d", len(validExamples))
	}

	trainer, err := train.New(model, train.Options{
		Epochs:       cfg.Train.Epochs,
		Optimizer:    cfg.Train.Optimizer,
		ClipNorm:     cfg.Train.ClipNorm,
		LogEvery:     cfg.Train.LogEvery,
		MaxDecodeLen: cfg.Train.MaxDecodeLen,
		Output:       cfg.Train.Output,
	}, log.Default())
	if err != nil {
		return err
	}
	trainer.SetVocabularies(source, target)
	if *resume != "" {
		if err := trainer.Restore(ckpt); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	history, err := trainer.Fit(ctx, trainSet, validSet)
	if err != nil {
		return err
	}
	if n := len(history); n > 0 {
		last := history[n-1]
		log.Printf("done after epoch %d: train_loss=%.4f valid_err=%.4f", last.Epoch, last.TrainLoss, last.ValidErrorRate)
	}
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := config.Marshal(config.Default(), *asJSON)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
