package discovery

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonwraymond/secretops/spec"
)

// PayloadKindPlugin marks a payload carried in a plugin configuration.
const PayloadKindPlugin = "PLUGIN"

// Definition identifies the resource owning a reference.
type Definition struct {
	Kind string
	ID   string
}

func (d Definition) String() string {
	return d.Kind + "/" + d.ID
}

// PayloadLocation identifies where inside a definition a payload sits,
// e.g. {PLUGIN, "jwt"} for the configuration of the jwt plugin.
type PayloadLocation struct {
	Kind string
	ID   string
}

// NoWhere is the payload location of a reference outside any plugin. It
// never equals a real plugin id.
var NoWhere = PayloadLocation{Kind: "NOWHERE", ID: "\x00nowhere"}

// Location is the full usage site of a reference.
type Location struct {
	Definition Definition
	Payloads   []PayloadLocation
}

// PluginLocation returns the first PLUGIN payload location, or NoWhere.
func (l Location) PluginLocation() PayloadLocation {
	for _, p := range l.Payloads {
		if p.Kind == PayloadKindPlugin {
			return p
		}
	}
	return NoWhere
}

// Context is one usage site of a reference.
type Context struct {
	ID       string
	EnvID    string
	Ref      spec.Ref
	Location Location
}

// NewContext creates a Context with a fresh id.
func NewContext(envID string, ref spec.Ref, loc Location) *Context {
	return &Context{
		ID:       uuid.NewString(),
		EnvID:    envID,
		Ref:      ref,
		Location: loc,
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("Context{id=%s env=%q definition=%s ref=%s}", c.ID, c.EnvID, c.Location.Definition, c.Ref.Raw)
}
