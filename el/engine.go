package el

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jonwraymond/secretops/spec"
)

// Engine compiles and evaluates expressions. Compiled programs are cached
// by source.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Variables are untyped; a missing variable evaluates to nil.
type Engine struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewEngine creates an engine with an empty program cache.
func NewEngine() *Engine {
	return &Engine{programs: make(map[string]*vm.Program)}
}

func (e *Engine) program(source string) (*vm.Program, error) {
	e.mu.RLock()
	p, ok := e.programs[source]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrEval, source, err)
	}
	e.mu.Lock()
	e.programs[source] = p
	e.mu.Unlock()
	return p, nil
}

// Eval evaluates one bare expression.
func (e *Engine) Eval(source string, vars map[string]any) (any, error) {
	p, err := e.program(strings.TrimSpace(source))
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	out, err := expr.Run(p, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrEval, source, err)
	}
	return out, nil
}

// Render replaces every {#...} segment of template with the string form of
// its value. nil renders as the empty string.
func (e *Engine) Render(template string, vars map[string]any) (string, error) {
	if !spec.IsExpression(template) {
		return template, nil
	}
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, spec.ELStart)
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:start])
		body := rest[start+len(spec.ELStart):]
		end := spec.SegmentEnd(body)
		if end < 0 {
			return "", fmt.Errorf("%w: %q", ErrUnterminated, template)
		}
		v, err := e.Eval(body[:end], vars)
		if err != nil {
			return "", err
		}
		b.WriteString(stringify(v))
		rest = body[end+len(spec.ELEnd):]
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// EvaluateRef renders every expression part of ref, returning a literal
// reference.
func (e *Engine) EvaluateRef(ref spec.Ref, vars map[string]any) (spec.Ref, error) {
	if ref.IsLiteral() {
		return ref, nil
	}
	main, err := e.Render(ref.Main.Value, vars)
	if err != nil {
		return spec.Ref{}, err
	}
	secondary, err := e.Render(ref.Secondary.Value, vars)
	if err != nil {
		return spec.Ref{}, err
	}
	if spec.IsExpression(main) || spec.IsExpression(secondary) {
		return spec.Ref{}, fmt.Errorf("%w: %s", ErrNotLiteral, ref.Raw)
	}
	return spec.NewRef(ref.MainType, spec.NewExpression(main), ref.SecondaryType, spec.NewExpression(secondary), ""), nil
}
