package grant

import (
	"testing"

	"github.com/jonwraymond/secretops/discovery"
	"github.com/jonwraymond/secretops/spec"
)

func usage(kind, id string, plugin string) *discovery.Context {
	loc := discovery.Location{Definition: discovery.Definition{Kind: kind, ID: id}}
	if plugin != "" {
		loc.Payloads = []discovery.PayloadLocation{{Kind: discovery.PayloadKindPlugin, ID: plugin}}
	}
	return discovery.NewContext("env-a", spec.MustParse("<< /mock/mySecret:redisPassword >>"), loc)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		acls *spec.ACLs
		dc   *discovery.Context
		want bool
	}{
		{"nil acls", nil, usage("api", "orders", ""), true},
		{"empty acls", &spec.ACLs{}, usage("api", "orders", ""), true},
		{
			"kind and id match",
			&spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "api", IDs: []string{"orders"}}}},
			usage("api", "orders", ""),
			true,
		},
		{
			"wrong id",
			&spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "api", IDs: []string{"billing"}}}},
			usage("api", "orders", ""),
			false,
		},
		{
			"wrong kind",
			&spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "dictionary", IDs: []string{"orders"}}}},
			usage("api", "orders", ""),
			false,
		},
		{
			"kind only",
			&spec.ACLs{Definitions: []spec.DefinitionACL{{Kind: "api"}}},
			usage("api", "anything", ""),
			true,
		},
		{
			"multiple definitions, any match",
			&spec.ACLs{Definitions: []spec.DefinitionACL{
				{Kind: "dictionary", IDs: []string{"d1"}},
				{Kind: "api", IDs: []string{"orders"}},
			}},
			usage("api", "orders", ""),
			true,
		},
		{
			"clauses are independent across entries",
			&spec.ACLs{Definitions: []spec.DefinitionACL{
				{Kind: "api", IDs: []string{"billing"}},
				{Kind: "dictionary", IDs: []string{"orders"}},
			}},
			usage("api", "orders", ""),
			true,
		},
		{
			"plugin matches",
			&spec.ACLs{Plugins: []spec.PluginACL{{ID: "jwt"}, {ID: "oauth2"}}},
			usage("api", "orders", "oauth2"),
			true,
		},
		{
			"plugin does not match",
			&spec.ACLs{Plugins: []spec.PluginACL{{ID: "jwt"}}},
			usage("api", "orders", "cors"),
			false,
		},
		{
			"plugin acl but payload outside any plugin",
			&spec.ACLs{Plugins: []spec.PluginACL{{ID: "jwt"}}},
			usage("api", "orders", ""),
			false,
		},
		{
			"definition matches, plugin does not",
			&spec.ACLs{
				Definitions: []spec.DefinitionACL{{Kind: "api", IDs: []string{"orders"}}},
				Plugins:     []spec.PluginACL{{ID: "jwt"}},
			},
			usage("api", "orders", "cors"),
			false,
		},
		{
			"plugin fields are not evaluated",
			&spec.ACLs{Plugins: []spec.PluginACL{{ID: "jwt", Fields: []string{"signature.key"}}}},
			usage("api", "orders", "jwt"),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.acls, tt.dc); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_NilContext(t *testing.T) {
	if Evaluate(&spec.ACLs{}, nil) {
		t.Error("nil context must never be permitted by ACLs")
	}
}
