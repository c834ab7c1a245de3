// Package discovery records where secret references are used.
//
// A DefinitionBrowser walks a deployed resource (an API definition, a TLS
// keystore declaration, a health-check rule) and reports every string
// payload to a PayloadNotifier together with its Location. Each reference
// found becomes a Context: a usage site identified by a unique id, owned by
// one environment and one resource definition.
//
// Registry indexes Contexts by id and by owning definition, and finds the
// Contexts whose reference resolves to a given Spec.
package discovery
