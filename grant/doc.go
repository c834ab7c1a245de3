// Package grant decides which discovery contexts may read a secret.
//
// Evaluate is the pure ACL predicate. Service wraps it with the empty-ACL
// policy, records granted contexts in a Registry and answers IsGranted for
// the expression-language "secrets" accessor. Grant tokens handed to
// templates are either raw context ids or, when a signing key is configured,
// HS256 JWTs whose subject is the context id.
package grant
