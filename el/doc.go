// Package el evaluates the expression-language segments of templates.
//
// A segment is written {#expression}; everything outside segments is
// copied verbatim. Expressions are evaluated with expr-lang against a map
// of variables. Rendering with a Reader adds the secrets variable, whose
// Get and GetRef methods read secrets through grant tokens:
//
//	password: {#secrets.Get("eyJhbGciOi...")}
//
// A token that is not granted, or a secret that is missing, denied or
// failed, renders as the empty string.
package el
