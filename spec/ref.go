package spec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Reference literal delimiters.
const (
	RefStart = "<<"
	RefEnd   = ">>"
)

// Expression-language delimiters. Classification is lexical only: any value
// containing ELStart is an expression, nothing is evaluated here.
const (
	ELStart = "{#"
	ELEnd   = "}"
)

// RefType is the role of a part of a reference.
type RefType int

const (
	// RefTypeNone marks an absent secondary part.
	RefTypeNone RefType = iota
	// RefTypeName is a Spec alias.
	RefTypeName
	// RefTypeURI is a provider location such as /vault/path.
	RefTypeURI
	// RefTypeKey selects one key of a secret bundle. Only valid after a URI.
	RefTypeKey
)

// String returns the keyword used for the type inside a reference literal.
func (t RefType) String() string {
	switch t {
	case RefTypeName:
		return "name"
	case RefTypeURI:
		return "uri"
	case RefTypeKey:
		return "key"
	default:
		return "none"
	}
}

func parseKeyword(s string) (RefType, bool) {
	switch strings.ToLower(s) {
	case "name":
		return RefTypeName, true
	case "uri":
		return RefTypeURI, true
	case "key":
		return RefTypeKey, true
	default:
		return RefTypeNone, false
	}
}

// Expression is one part of a reference: either a literal or a value
// containing expression-language segments.
type Expression struct {
	Value string
	EL    bool
}

// NewExpression classifies value lexically.
func NewExpression(value string) Expression {
	return Expression{Value: value, EL: IsExpression(value)}
}

// IsLiteral reports whether the value carries no expression-language segment.
func (e Expression) IsLiteral() bool {
	return !e.EL
}

func (e Expression) String() string {
	return e.Value
}

// IsExpression reports whether s contains an expression-language segment.
func IsExpression(s string) bool {
	return strings.Contains(s, ELStart)
}

// Ref is the parsed, immutable form of a reference literal.
type Ref struct {
	MainType      RefType
	Main          Expression
	SecondaryType RefType
	Secondary     Expression
	Raw           string
}

// NewRef builds a Ref. A KEY secondary part on a non-URI main part is a
// programming error and panics.
func NewRef(mainType RefType, main Expression, secondaryType RefType, secondary Expression, raw string) Ref {
	if mainType != RefTypeName && mainType != RefTypeURI {
		panic(fmt.Sprintf("spec: invalid main reference type %s", mainType))
	}
	if secondaryType == RefTypeKey && mainType != RefTypeURI {
		panic("spec: key reference requires an uri main part")
	}
	r := Ref{
		MainType:      mainType,
		Main:          main,
		SecondaryType: secondaryType,
		Secondary:     secondary,
		Raw:           raw,
	}
	if r.Raw == "" {
		r.Raw = r.String()
	}
	return r
}

// HasSecondary reports whether the reference has a secondary part.
func (r Ref) HasSecondary() bool {
	return r.SecondaryType != RefTypeNone
}

// IsLiteral reports whether neither part is an expression.
func (r Ref) IsLiteral() bool {
	if r.Main.EL {
		return false
	}
	return !r.HasSecondary() || r.Secondary.IsLiteral()
}

// URIAndKey returns the canonical uri:key form used as compound lookup key.
// It returns the bare uri when there is no key and "" for name references.
func (r Ref) URIAndKey() string {
	if r.MainType != RefTypeURI {
		return ""
	}
	if r.SecondaryType == RefTypeKey {
		return r.Main.Value + ":" + r.Secondary.Value
	}
	return r.Main.Value
}

// String returns the canonical literal, e.g. "<< uri /vault/db key password >>".
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(RefStart)
	b.WriteString(" ")
	b.WriteString(r.MainType.String())
	b.WriteString(" ")
	b.WriteString(r.Main.Value)
	if r.HasSecondary() {
		b.WriteString(" ")
		b.WriteString(r.SecondaryType.String())
		b.WriteString(" ")
		b.WriteString(r.Secondary.Value)
	}
	b.WriteString(" ")
	b.WriteString(RefEnd)
	return b.String()
}

// ToRuntimeSpec synthesizes the minimal on-the-fly Spec for this reference.
// An expression key yields a Spec covering the whole bundle with
// UsesDynamicKey set; the runtime's on-the-fly path only passes literal refs,
// so such Specs come from callers deploying them explicitly.
func (r Ref) ToRuntimeSpec(envID string) *Spec {
	s := &Spec{
		ID:         uuid.NewString(),
		EnvID:      envID,
		OnTheFly:   true,
		Resolution: Resolution{Type: ResolutionOnce},
	}
	assign := func(t RefType, e Expression) {
		switch t {
		case RefTypeName:
			s.Name = e.Value
		case RefTypeURI:
			s.URI = e.Value
		case RefTypeKey:
			if e.EL {
				s.UsesDynamicKey = true
				return
			}
			s.Key = e.Value
		}
	}
	assign(r.MainType, r.Main)
	assign(r.SecondaryType, r.Secondary)
	return s
}

var uriScheme = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

func looksLikeURI(s string) bool {
	return strings.HasPrefix(s, "/") || uriScheme.MatchString(s)
}

// Parse parses a delimited reference literal.
func Parse(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, RefStart) || !strings.HasSuffix(s, RefEnd) || len(s) < len(RefStart)+len(RefEnd) {
		return Ref{}, fmt.Errorf("%w: %q is not delimited by %s %s", ErrMalformedRef, raw, RefStart, RefEnd)
	}
	body := strings.TrimSpace(s[len(RefStart) : len(s)-len(RefEnd)])
	tokens, err := tokenize(body)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %v", ErrMalformedRef, raw, err)
	}
	if len(tokens) == 0 {
		return Ref{}, fmt.Errorf("%w: %q is empty", ErrMalformedRef, raw)
	}

	i := 0
	mainType := RefTypeNone
	if kw, ok := parseKeyword(tokens[0]); ok && len(tokens) > 1 {
		if kw == RefTypeKey {
			return Ref{}, fmt.Errorf("%w: %q starts with a key", ErrMalformedRef, raw)
		}
		mainType = kw
		i = 1
	}
	main := tokens[i]
	i++

	secondaryType := RefTypeNone
	var secondary string
	switch len(tokens) - i {
	case 0:
	case 2:
		kw, ok := parseKeyword(tokens[i])
		if !ok {
			return Ref{}, fmt.Errorf("%w: %q has unknown qualifier %q", ErrMalformedRef, raw, tokens[i])
		}
		secondaryType = kw
		secondary = tokens[i+1]
	default:
		return Ref{}, fmt.Errorf("%w: %q has unexpected tokens", ErrMalformedRef, raw)
	}

	if mainType == RefTypeNone {
		if IsExpression(main) || looksLikeURI(main) {
			mainType = RefTypeURI
		} else {
			mainType = RefTypeName
		}
	}
	if mainType == RefTypeURI && secondaryType == RefTypeNone {
		if uri, key, ok := splitKey(main); ok {
			main = uri
			secondaryType = RefTypeKey
			secondary = key
		}
	}
	if secondaryType == RefTypeKey && mainType != RefTypeURI {
		return Ref{}, fmt.Errorf("%w: %q uses a key without an uri", ErrMalformedRef, raw)
	}
	if secondaryType == mainType {
		return Ref{}, fmt.Errorf("%w: %q repeats the %s qualifier", ErrMalformedRef, raw, mainType)
	}

	return NewRef(mainType, NewExpression(main), secondaryType, NewExpression(secondary), raw), nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(raw string) Ref {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// tokenize splits on whitespace outside of expression segments.
func tokenize(body string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(body) {
		if isSpace(body[i]) {
			i++
			continue
		}
		start := i
		for i < len(body) && !isSpace(body[i]) {
			if !strings.HasPrefix(body[i:], ELStart) {
				i++
				continue
			}
			n := SegmentEnd(body[i+len(ELStart):])
			if n < 0 {
				return nil, fmt.Errorf("unterminated expression in %q", body[start:])
			}
			i += len(ELStart) + n + len(ELEnd)
		}
		tokens = append(tokens, body[start:i])
	}
	return tokens, nil
}

// SegmentEnd returns the index of the brace closing the expression segment
// whose body starts s, or -1. Nested braces and quoted strings are skipped;
// backslash escapes apply inside single and double quotes only.
func SegmentEnd(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// splitKey splits "uri:key" on the last top-level colon that is not part of
// a scheme separator.
func splitKey(s string) (uri, key string, ok bool) {
	minIdx := 0
	if loc := uriScheme.FindStringIndex(s); loc != nil {
		minIdx = loc[1]
	}
	idx := -1
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], ELStart) {
			n := SegmentEnd(s[i+len(ELStart):])
			if n < 0 {
				return s, "", false
			}
			i += len(ELStart) + n
			continue
		}
		if s[i] == ':' && i >= minIdx {
			idx = i
		}
	}
	if idx <= 0 || idx == len(s)-1 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Match is one reference literal found inside a payload.
type Match struct {
	Raw   string
	Start int
	End   int
}

// FindRefs returns every delimited reference literal in payload, in order.
// Byte offsets are half-open: payload[Start:End] == Raw.
func FindRefs(payload string) []Match {
	var matches []Match
	i := 0
	for {
		rel := strings.Index(payload[i:], RefStart)
		if rel < 0 {
			return matches
		}
		start := i + rel
		end := -1
	scan:
		for j := start + len(RefStart); j < len(payload); j++ {
			switch {
			case strings.HasPrefix(payload[j:], ELStart):
				n := SegmentEnd(payload[j+len(ELStart):])
				if n < 0 {
					break scan
				}
				j += len(ELStart) + n
			case strings.HasPrefix(payload[j:], RefEnd):
				end = j + len(RefEnd)
				break scan
			}
		}
		if end < 0 {
			return matches
		}
		matches = append(matches, Match{Raw: payload[start:end], Start: start, End: end})
		i = end
	}
}
