package config

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/secretops/spec"
)

// Spec declares a secret binding.
type Spec struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	EnvID      string     `yaml:"envId"`
	URI        string     `yaml:"uri"`
	Key        string     `yaml:"key"`
	Children   []Child    `yaml:"children"`
	Resolution Resolution `yaml:"resolution"`
	ACLs       *ACLs      `yaml:"acls"`
}

// Child names one key of the bundle.
type Child struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// Resolution declares the refresh policy. Type is ONCE, TTL or POLL.
type Resolution struct {
	Type           string        `yaml:"type"`
	Duration       time.Duration `yaml:"duration"`
	CheckBeforeTTL time.Duration `yaml:"checkBeforeTTL"`
	Watch          bool          `yaml:"watch"`
}

// ACLs restrict which definitions and plugins may read the secret.
type ACLs struct {
	Definitions []DefinitionACL `yaml:"definitions"`
	Plugins     []PluginACL     `yaml:"plugins"`
}

// DefinitionACL matches definitions of a kind, optionally by id.
type DefinitionACL struct {
	Kind string   `yaml:"kind"`
	IDs  []string `yaml:"ids"`
}

// PluginACL matches a plugin by id.
type PluginACL struct {
	ID     string   `yaml:"id"`
	Fields []string `yaml:"fields"`
}

// ToSpec converts and validates the declaration. A missing id is generated.
func (s Spec) ToSpec() (*spec.Spec, error) {
	typ, err := spec.ParseResolutionType(s.Resolution.Type)
	if err != nil {
		return nil, err
	}
	out := &spec.Spec{
		ID:    s.ID,
		Name:  s.Name,
		URI:   s.URI,
		Key:   s.Key,
		EnvID: s.EnvID,
		Resolution: spec.Resolution{
			Type:           typ,
			Duration:       s.Resolution.Duration,
			CheckBeforeTTL: s.Resolution.CheckBeforeTTL,
			Watch:          s.Resolution.Watch,
		},
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	for _, c := range s.Children {
		out.Children = append(out.Children, spec.ChildSpec{Name: c.Name, Key: c.Key})
	}
	if s.ACLs != nil {
		acls := &spec.ACLs{}
		for _, d := range s.ACLs.Definitions {
			acls.Definitions = append(acls.Definitions, spec.DefinitionACL{Kind: d.Kind, IDs: d.IDs})
		}
		for _, p := range s.ACLs.Plugins {
			acls.Plugins = append(acls.Plugins, spec.PluginACL{ID: p.ID, Fields: p.Fields})
		}
		out.ACLs = acls
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
