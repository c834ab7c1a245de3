package el

import "errors"

var (
	// ErrUnterminated indicates a segment without its closing brace.
	ErrUnterminated = errors.New("el: unterminated expression")

	// ErrEval indicates an expression that failed to compile or run.
	ErrEval = errors.New("el: evaluation failed")

	// ErrNotLiteral indicates a reference still holding an expression after evaluation.
	ErrNotLiteral = errors.New("el: reference did not evaluate to a literal")
)
