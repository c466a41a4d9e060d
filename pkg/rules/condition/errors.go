package condition

import "fmt"

// SyntaxError reports a malformed condition and the rune offset where parsing failed.
type SyntaxError struct {
	Source  string
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("condition syntax error at offset %d: %s (in %q)", e.Offset, e.Message, e.Source)
}

func newSyntaxError(src string, offset int, msg string) *SyntaxError {
	return &SyntaxError{Source: src, Offset: offset, Message: msg}
}

// EvalError reports a failure while evaluating a compiled condition against a context.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("condition evaluation failed for %s: %s", e.Expr, e.Message)
}

func newEvalError(n Node, format string, args ...any) *EvalError {
	return &EvalError{Expr: n.String(), Message: fmt.Sprintf(format, args...)}
}
