// Package file resolves secrets from files on disk.
//
// A YAML or JSON file yields a bundle of its top-level keys; any other file
// yields a one-key bundle {"value": <content>}. The format is taken from the
// format option, then from the file extension.
//
//	/file/redis.yaml
//	/file/certs/tls.key?format=raw
//
// Watches follow the file with fsnotify.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/secretops/secret"
)

// Plugin is the plugin id of the file provider.
const Plugin = "file"

// RawKey is the bundle key of a raw file.
const RawKey = "value"

// Config is the file provider configuration.
type Config struct {
	// Root is the directory secret paths are relative to. Paths may not
	// escape it.
	Root string `yaml:"root"`
}

// Provider reads secret files under a root directory.
type Provider struct {
	root string
}

// New creates a provider rooted at cfg.Root (the working directory if empty).
func New(cfg Config) (*Provider, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %v", secret.ErrInvalidConfig, err)
	}
	return &Provider{root: abs}, nil
}

// Factory decodes a Config and builds a Provider.
func Factory(cfg map[string]any) (secret.Provider, error) {
	var c Config
	if err := secret.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return New(c)
}

// FromURL maps /file/<path> onto <root>/<path>.
func (p *Provider) FromURL(u secret.URL) (secret.Mount, error) {
	clean := filepath.Clean(filepath.FromSlash(u.Path))
	if !filepath.IsLocal(clean) {
		return secret.Mount{}, fmt.Errorf("%w: %q escapes the provider root", secret.ErrInvalidURL, u.Path)
	}
	m := secret.DefaultMount(u)
	m.Location = filepath.Join(p.root, clean)
	return m, nil
}

// Resolve reads and decodes the file.
func (p *Provider) Resolve(ctx context.Context, m secret.Mount) *secret.Future {
	return secret.Go(ctx, func(context.Context) (secret.Map, bool, error) {
		return read(m)
	})
}

func read(m secret.Mount) (secret.Map, bool, error) {
	data, err := os.ReadFile(m.Location)
	if errors.Is(err, fs.ErrNotExist) {
		return secret.Map{}, false, nil
	}
	if err != nil {
		return secret.Map{}, false, err
	}
	bundle, err := decode(data, format(m))
	if err != nil {
		return secret.Map{}, false, fmt.Errorf("file: %s: %w", filepath.Base(m.Location), err)
	}
	return secret.MapOf(bundle), true, nil
}

func format(m secret.Mount) string {
	if f := m.Option("format", ""); f != "" {
		return strings.ToLower(f)
	}
	switch strings.ToLower(filepath.Ext(m.Location)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "raw"
	}
}

// decode parses YAML and JSON alike; JSON documents are valid YAML.
func decode(data []byte, format string) (map[string]string, error) {
	if format != "yaml" && format != "json" {
		return map[string]string{RawKey: string(data)}, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
			out[k] = ""
		case map[string]any, []any:
			nested, err := yaml.Marshal(t)
			if err != nil {
				return nil, err
			}
			out[k] = string(nested)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, nil
}

// Watch follows the file. Writes and creations re-read it, removals and
// renames emit DELETED.
func (p *Provider) Watch(ctx context.Context, m secret.Mount, types ...secret.EventType) (*secret.Watch, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory so the file can be replaced atomically.
	if err := fw.Add(filepath.Dir(m.Location)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return secret.StartWatch(ctx, func(ctx context.Context, emit func(secret.Event) bool) {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-fw.Errors:
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != m.Location {
					continue
				}
				e, ok := toEvent(ev, m)
				if !ok || !secret.Accepts(types, e.Type) {
					continue
				}
				if !emit(e) {
					return
				}
			}
		}
	}), nil
}

func toEvent(ev fsnotify.Event, m secret.Mount) (secret.Event, bool) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return secret.Event{Type: secret.EventDeleted}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		bundle, found, err := read(m)
		if err != nil || !found {
			return secret.Event{}, false
		}
		typ := secret.EventUpdated
		if ev.Has(fsnotify.Create) {
			typ = secret.EventCreated
		}
		return secret.Event{Type: typ, Map: bundle}, true
	default:
		return secret.Event{}, false
	}
}

// Close is a no-op; watches close with their context.
func (p *Provider) Close() error { return nil }
