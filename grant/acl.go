package grant

import (
	"slices"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/spec"
)

// Evaluate reports whether acls permit dc. The kind, id and plugin clauses
// must all hold; each holds when no entry constrains it or when any entry
// satisfies it. Nil or empty ACLs permit everything.
func Evaluate(acls *spec.ACLs, dc *discovery.Context) bool {
	if acls == nil {
		return true
	}
	if dc == nil {
		return false
	}
	def := dc.Location.Definition
	return kindMatches(acls.Definitions, def.Kind) &&
		idMatches(acls.Definitions, def.ID) &&
		pluginMatches(acls.Plugins, dc.Location.PluginLocation())
}

func kindMatches(defs []spec.DefinitionACL, kind string) bool {
	constrained := false
	for _, d := range defs {
		if d.Kind == "" {
			continue
		}
		constrained = true
		if d.Kind == kind {
			return true
		}
	}
	return !constrained
}

func idMatches(defs []spec.DefinitionACL, id string) bool {
	constrained := false
	for _, d := range defs {
		if len(d.IDs) == 0 {
			continue
		}
		constrained = true
		if slices.Contains(d.IDs, id) {
			return true
		}
	}
	return !constrained
}

func pluginMatches(plugins []spec.PluginACL, loc discovery.PayloadLocation) bool {
	if len(plugins) == 0 {
		return true
	}
	return slices.ContainsFunc(plugins, func(p spec.PluginACL) bool { return p.ID == loc.ID })
}
