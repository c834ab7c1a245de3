package discovery

import (
	"fmt"
	"sort"
)

// PayloadNotifier receives every string payload of a definition. update
// rewrites the payload in place.
type PayloadNotifier interface {
	OnPayload(payload string, loc Location, update func(string))
}

// PayloadNotifierFunc adapts a function to PayloadNotifier.
type PayloadNotifierFunc func(payload string, loc Location, update func(string))

// OnPayload calls f.
func (f PayloadNotifierFunc) OnPayload(payload string, loc Location, update func(string)) {
	f(payload, loc, update)
}

// DefinitionBrowser walks one resource type.
//
// Contract:
// - Definition identifies the resource; it must be stable across deploys.
// - Browse reports every payload that may carry a reference, with a
//   Location naming the plugin carrying it when there is one.
// - update callbacks are only valid during Browse.
type DefinitionBrowser[T any] interface {
	Definition(def T) Definition
	Browse(def T, notifier PayloadNotifier)
}

// Document is a generic resource: a body plus plugin configurations.
type Document struct {
	Kind    string
	ID      string
	Body    map[string]any
	Plugins []Plugin
}

// Plugin is one plugin configuration inside a Document.
type Plugin struct {
	ID     string
	Config map[string]any
}

// DocumentBrowser browses Documents, walking nested maps and lists.
type DocumentBrowser struct{}

var _ DefinitionBrowser[*Document] = DocumentBrowser{}

// Definition returns the document kind and id.
func (DocumentBrowser) Definition(d *Document) Definition {
	return Definition{Kind: d.Kind, ID: d.ID}
}

// Browse reports the string leaves of the body, then of every plugin.
func (b DocumentBrowser) Browse(d *Document, notifier PayloadNotifier) {
	def := b.Definition(d)
	walk(d.Body, Location{Definition: def}, notifier)
	for _, p := range d.Plugins {
		loc := Location{
			Definition: def,
			Payloads:   []PayloadLocation{{Kind: PayloadKindPlugin, ID: p.ID}},
		}
		walk(p.Config, loc, notifier)
	}
}

func walk(node any, loc Location, notifier PayloadNotifier) {
	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := t[k].(string); ok {
				notifier.OnPayload(s, loc, func(v string) { t[k] = v })
				continue
			}
			walk(t[k], loc, notifier)
		}
	case []any:
		for i := range t {
			if s, ok := t[i].(string); ok {
				notifier.OnPayload(s, loc, func(v string) { t[i] = v })
				continue
			}
			walk(t[i], loc, notifier)
		}
	}
}

func (d *Document) String() string {
	return fmt.Sprintf("Document{%s/%s plugins=%d}", d.Kind, d.ID, len(d.Plugins))
}
