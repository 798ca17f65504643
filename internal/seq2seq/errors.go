package seq2seq

import (
	"errors"

	"github.com/born-ml/seq2seq/internal/nn"
)

// Errors returned by the model. The recurrent errors are the nn sentinels,
// so errors.Is works against either package.
var (
	ErrInvalidLengths = nn.ErrInvalidLengths
	ErrStateShape     = nn.ErrStateShape
	ErrLayoutMismatch = nn.ErrLayoutMismatch

	// ErrHiddenSizeOdd reports a hidden size that cannot be split between
	// the two encoder directions.
	ErrHiddenSizeOdd = errors.New("hidden size must be even")

	// ErrInvalidConfig reports a model configuration that cannot be built.
	ErrInvalidConfig = errors.New("invalid model config")
)
