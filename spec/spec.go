package spec

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ResolutionType governs whether and how a resolved secret is refreshed.
type ResolutionType int

const (
	// ResolutionOnce resolves at deploy time only.
	ResolutionOnce ResolutionType = iota
	// ResolutionTTL stamps an expiry and re-resolves shortly before it.
	ResolutionTTL
	// ResolutionPoll re-resolves at a fixed interval.
	ResolutionPoll
)

// String returns the configuration name of the type.
func (t ResolutionType) String() string {
	switch t {
	case ResolutionTTL:
		return "TTL"
	case ResolutionPoll:
		return "POLL"
	default:
		return "ONCE"
	}
}

// ParseResolutionType parses ONCE, TTL or POLL (case-insensitive).
// An empty string is ONCE.
func ParseResolutionType(s string) (ResolutionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ONCE":
		return ResolutionOnce, nil
	case "TTL":
		return ResolutionTTL, nil
	case "POLL":
		return ResolutionPoll, nil
	default:
		return ResolutionOnce, fmt.Errorf("%w: unknown resolution type %q", ErrInvalidSpec, s)
	}
}

// Resolution is the refresh policy of a Spec.
type Resolution struct {
	Type ResolutionType

	// Duration is the TTL for ResolutionTTL and the interval for ResolutionPoll.
	Duration time.Duration

	// CheckBeforeTTL is the lead time before expiry at which a TTL secret is
	// renewed. Zero means the renewal service default.
	CheckBeforeTTL time.Duration

	// Watch subscribes to provider change events in addition to the policy.
	Watch bool
}

// NeedsRenewal reports whether the renewal service must track the Spec.
func (r Resolution) NeedsRenewal() bool {
	return r.Type != ResolutionOnce || r.Watch
}

// ACLs restrict which discovery contexts may read a Spec.
// An empty Definitions list matches any definition; an empty Plugins list
// matches any plugin.
type ACLs struct {
	Definitions []DefinitionACL
	Plugins     []PluginACL
}

// DefinitionACL matches the resource owning a reference.
type DefinitionACL struct {
	Kind string
	IDs  []string
}

// PluginACL matches the plugin carrying a reference in its configuration.
type PluginACL struct {
	ID     string
	Fields []string
}

// ChildSpec is a named sub-reference into a secret bundle.
type ChildSpec struct {
	Name string
	Key  string
}

// Spec is the canonical description of a secret binding.
type Spec struct {
	ID             string
	Name           string
	URI            string
	Key            string
	Children       []ChildSpec
	UsesDynamicKey bool
	OnTheFly       bool
	Resolution     Resolution
	ACLs           *ACLs

	// EnvID is the owning environment. Empty means provider-wide: usable by
	// every environment.
	EnvID string
}

// NaturalID is the cache key of the Spec: its name, or its uri when unnamed.
func (s *Spec) NaturalID() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URI
}

// URIAndKey returns "uri:key", or the bare uri when the Spec has no key.
func (s *Spec) URIAndKey() string {
	if s.URI == "" || s.Key == "" {
		return s.URI
	}
	return s.URI + ":" + s.Key
}

// KeyFor returns the bundle key addressed by name: the key of a matching
// child, or the Spec key otherwise.
func (s *Spec) KeyFor(name string) string {
	for _, c := range s.Children {
		if c.Name == name {
			return c.Key
		}
	}
	return s.Key
}

// HasName reports whether name is the Spec name or one of its children.
func (s *Spec) HasName(name string) bool {
	if name == "" {
		return false
	}
	if s.Name == name {
		return true
	}
	return slices.ContainsFunc(s.Children, func(c ChildSpec) bool { return c.Name == name })
}

// Matches reports whether a literal reference resolves to this Spec. It
// agrees with Registry.FromRef on a registry holding only this Spec.
func (s *Spec) Matches(r Ref) bool {
	if r.Main.EL {
		return false
	}
	if r.MainType == RefTypeName {
		return s.HasName(r.Main.Value)
	}
	switch r.SecondaryType {
	case RefTypeName:
		return r.Secondary.IsLiteral() && s.HasName(r.Secondary.Value)
	case RefTypeKey:
		if s.URI != r.Main.Value {
			return false
		}
		if r.Secondary.EL {
			return true
		}
		return s.Key == r.Secondary.Value || s.coversAnyKey()
	default:
		return s.URI == r.Main.Value
	}
}

func (s *Spec) coversAnyKey() bool {
	return s.Key == "" || s.UsesDynamicKey
}

// Validate checks that the Spec can be registered and resolved.
func (s *Spec) Validate() error {
	if s == nil {
		return ErrNilSpec
	}
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if s.URI == "" {
		errs = append(errs, errors.New("uri is required"))
	}
	if IsExpression(s.URI) || IsExpression(s.Name) {
		errs = append(errs, errors.New("name and uri must be literals"))
	}
	switch s.Resolution.Type {
	case ResolutionTTL, ResolutionPoll:
		if s.Resolution.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s resolution requires a positive duration", s.Resolution.Type))
		}
	}
	if s.Resolution.CheckBeforeTTL < 0 {
		errs = append(errs, errors.New("checkBeforeTTL must not be negative"))
	}
	for i, c := range s.Children {
		if c.Name == "" || c.Key == "" {
			errs = append(errs, fmt.Errorf("child %d requires name and key", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidSpec, s.NaturalID(), errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy of the Spec.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	c := *s
	c.Children = slices.Clone(s.Children)
	if s.ACLs != nil {
		acls := ACLs{
			Definitions: make([]DefinitionACL, len(s.ACLs.Definitions)),
			Plugins:     make([]PluginACL, len(s.ACLs.Plugins)),
		}
		for i, d := range s.ACLs.Definitions {
			acls.Definitions[i] = DefinitionACL{Kind: d.Kind, IDs: slices.Clone(d.IDs)}
		}
		for i, p := range s.ACLs.Plugins {
			acls.Plugins[i] = PluginACL{ID: p.ID, Fields: slices.Clone(p.Fields)}
		}
		c.ACLs = &acls
	}
	return &c
}

func (s *Spec) String() string {
	return fmt.Sprintf("Spec{id=%s natural_id=%s env=%q resolution=%s}", s.ID, s.NaturalID(), s.EnvID, s.Resolution.Type)
}
