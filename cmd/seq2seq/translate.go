package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/seq2seq"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func runTranslate(args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	modelPath := fs.String("model", "model.s2s", "Checkpoint to translate with")
	maxLen := fs.Int("max-len", 50, "Maximum generated tokens")
	minLen := fs.Int("min-len", 0, "Minimum generated tokens before <eos>")
	temperature := fs.Float64("temperature", 0, "Sampling temperature, 0 for greedy")
	topK := fs.Int("top-k", 0, "Sample from the K most likely tokens")
	topP := fs.Float64("top-p", 0, "Nucleus sampling mass")
	repeat := fs.Float64("repeat-penalty", 1, "Divide the logits of already generated tokens")
	seed := fs.Int64("seed", -1, "Sampling seed, -1 for random")
	attnMap := fs.Bool("attn-map", false, "Print the attention weights of each translation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())
	model, ckpt, err := seq2seq.LoadCheckpoint(*modelPath, backend)
	if err != nil {
		return err
	}
	tr, err := generate.NewTranslator(model, ckpt.SourceVocab, ckpt.TargetVocab)
	if err != nil {
		return err
	}
	cfg := generate.Config{
		MaxLen: *maxLen,
		MinLen: *minLen,
		Sampling: generate.SamplingConfig{
			Temperature:   float32(*temperature),
			TopK:          *topK,
			TopP:          float32(*topP),
			RepeatPenalty: float32(*repeat),
			Seed:          *seed,
		},
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	translate := func(line string) error {
		res, err := tr.Translate(context.Background(), line, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Text)
		if *attnMap {
			writeAttention(out, res)
		}
		return nil
	}

	if fs.NArg() > 0 {
		return translate(strings.Join(fs.Args(), " "))
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := translate(line); err != nil {
			return err
		}
		out.Flush()
	}
	return scanner.Err()
}

// writeAttention prints one row per generated token and one column per
// source unit.
func writeAttention(w io.Writer, res generate.Result) {
	if len(res.Attention) == 0 {
		fmt.Fprintln(w, "(model has no attention)")
		return
	}
	fmt.Fprintf(w, "%12s", "")
	for _, s := range res.Source {
		fmt.Fprintf(w, " %8.8s", s)
	}
	fmt.Fprintln(w)
	for i, row := range res.Attention {
		tok := "<eos>"
		if i < len(res.Tokens) {
			tok = res.Tokens[i]
		}
		fmt.Fprintf(w, "%12.12s", tok)
		for _, p := range row {
			fmt.Fprintf(w, " %8.3f", p)
		}
		fmt.Fprintln(w)
	}
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	modelPath := fs.String("model", "model.s2s", "Checkpoint to export")
	output := fs.String("o", "model.safetensors", "Output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ckpt, weights, err := seq2seq.ReadCheckpoint(*modelPath, tensor.CPU)
	if err != nil {
		return err
	}
	metadata := map[string]string{"model_type": seq2seq.ModelType}
	for k, v := range ckpt.Metadata {
		metadata[k] = v
	}
	if err := serialization.WriteSafeTensors(*output, weights, metadata); err != nil {
		return err
	}
	fmt.Printf("wrote %d tensors to %s\n", len(weights), *output)
	return nil
}
