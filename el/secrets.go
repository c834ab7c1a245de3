package el

import (
	"context"
	"maps"
	"strconv"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/secret"
	"github.com/jonwraymond/secretops/spec"
)

// SecretsVar is the name of the variable exposing secrets to templates.
const SecretsVar = "secrets"

// AccessorCall returns the template segment reading the secret bound to
// token.
func AccessorCall(token string) string {
	return spec.ELStart + SecretsVar + ".Get(" + strconv.Quote(token) + ")" + spec.ELEnd
}

// Reader reads secrets on behalf of granted discovery contexts.
// *lifecycle.Service implements it.
type Reader interface {
	// ContextFor returns the granted context identified by token.
	ContextFor(token string) (*discovery.Context, bool)

	// Read returns the secret addressed by the literal ref for dc.
	Read(ctx context.Context, dc *discovery.Context, ref spec.Ref) (secret.Secret, bool)
}

// Secrets is the value of the secrets template variable.
type Secrets struct {
	ctx    context.Context
	reader Reader
	engine *Engine
	vars   map[string]any
}

// Secrets returns the accessor for one render. vars evaluate the
// expression parts of references.
func (e *Engine) Secrets(ctx context.Context, r Reader, vars map[string]any) *Secrets {
	return &Secrets{ctx: ctx, reader: r, engine: e, vars: vars}
}

// Get returns the secret bound to token, or "" when it cannot be read.
func (s *Secrets) Get(token string) string {
	dc, ok := s.reader.ContextFor(token)
	if !ok {
		return ""
	}
	return s.read(dc, dc.Ref)
}

// GetRef reads another reference with the rights of token's context.
func (s *Secrets) GetRef(token, raw string) string {
	dc, ok := s.reader.ContextFor(token)
	if !ok {
		return ""
	}
	ref, err := spec.Parse(raw)
	if err != nil {
		return ""
	}
	return s.read(dc, ref)
}

func (s *Secrets) read(dc *discovery.Context, ref spec.Ref) string {
	ref, err := s.engine.EvaluateRef(ref, s.vars)
	if err != nil {
		return ""
	}
	v, ok := s.reader.Read(s.ctx, dc, ref)
	if !ok {
		return ""
	}
	return v.Value()
}

// RenderSecrets renders template with vars plus the secrets variable.
func (e *Engine) RenderSecrets(ctx context.Context, template string, r Reader, vars map[string]any) (string, error) {
	all := make(map[string]any, len(vars)+1)
	maps.Copy(all, vars)
	all[SecretsVar] = e.Secrets(ctx, r, vars)
	return e.Render(template, all)
}
