package secret

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Lookup resolves one variable name.
type Lookup func(name string) (string, bool)

// ExpandString substitutes variables in a provider configuration value.
//
// Semantics:
//   - `${NAME}` is replaced by the value of NAME; an unset NAME is an error.
//   - `${NAME:-fallback}` uses fallback when NAME is unset or empty.
//   - `$$` emits a literal `$`. Any other `$` is kept as is, so values such
//     as password hashes need no escaping.
//
// Every unset variable is reported in one ErrMissingEnv error, sorted.
func ExpandString(s string, lookup Lookup) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var (
		b       strings.Builder
		missing []string
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '$':
			b.WriteByte('$')
			i++
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				i = len(s)
				continue
			}
			name, fallback, hasFallback := strings.Cut(s[i+2:i+2+end], ":-")
			v, ok := lookup(name)
			switch {
			case ok && (v != "" || !hasFallback):
				b.WriteString(v)
			case hasFallback:
				b.WriteString(fallback)
			default:
				if !slices.Contains(missing, name) {
					missing = append(missing, name)
				}
			}
			i += end + 2
		default:
			b.WriteByte(c)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return b.String(), nil
}
