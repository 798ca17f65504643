// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/born-ml/seq2seq/autodiff"
	"github.com/born-ml/seq2seq/backend/cpu"
	"github.com/born-ml/seq2seq/model"
	"github.com/born-ml/seq2seq/tensor"
)

func smallConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.SrcVocabSize = 9
	cfg.TgtVocabSize = 10
	cfg.HiddenSize = 6
	cfg.Dropout = 0
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.HiddenSize = 5
	if _, err := model.New(cfg, cpu.New()); !errors.Is(err, model.ErrHiddenSizeOdd) {
		t.Errorf("New() error = %v, want ErrHiddenSizeOdd", err)
	}
}

func TestForwardSaveLoad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	m, err := model.New(smallConfig(), backend)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.Train(false)

	src := tensor.MustFromSlice([]int32{4, 5, 2, 6, 2, 0}, tensor.Shape{2, 3}, backend)
	tgt := tensor.MustFromSlice([]int32{1, 7, 1, 8}, tensor.Shape{2, 2}, backend)
	logits, _, err := m.Forward(src, []int{3, 2}, tgt, nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !logits.Shape().Equal(tensor.Shape{2, 2, 10}) {
		t.Fatalf("logits shape = %v, want [2 2 10]", logits.Shape())
	}

	path := filepath.Join(t.TempDir(), "m.s2s")
	if err := model.Save(path, m, model.Checkpoint{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, _, err := model.Load(path, backend)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	loaded.Train(false)
	again, _, err := loaded.Forward(src, []int{3, 2}, tgt, nil)
	if err != nil {
		t.Fatalf("Forward after Load failed: %v", err)
	}
	want, got := logits.Data(), again.Data()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("logit %d = %v after reload, want %v", i, got[i], want[i])
		}
	}
}
