package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Wildcard in a rule's action list gates every action on the server.
const Wildcard = "*"

// Actions is either an explicit action allowlist or the wildcard. It accepts
// both YAML forms: `actions: "*"` and `actions: [deploy, rotate]`.
type Actions []string

// UnmarshalYAML accepts a scalar or a sequence.
func (a *Actions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = Actions{node.Value}
		return nil
	}
	return node.Decode((*[]string)(a))
}

// Rule describes gating for a single server.
type Rule struct {
	Actions Actions `yaml:"actions" json:"actions"`
	Phrase  string  `yaml:"phrase" json:"phrase"`
}

// Matches reports whether the action is gated under this rule. Action names
// compare case-insensitively.
func (r *Rule) Matches(action string) bool {
	if r == nil {
		return false
	}
	for _, candidate := range r.Actions {
		if candidate == Wildcard || strings.EqualFold(candidate, action) {
			return true
		}
	}
	return false
}

// Catalog maps servers to their protection rules.
type Catalog struct {
	Servers map[string]*Rule `yaml:"servers" json:"servers"`
}

// Lookup is a total function: it returns the rule gating (server, action), or
// nil when the pair needs no approval. A nil catalog gates nothing.
func (c *Catalog) Lookup(server, action string) *Rule {
	if c == nil {
		return nil
	}
	rule, ok := c.Servers[server]
	if !ok || !rule.Matches(action) {
		return nil
	}
	return rule
}

// Load reads a catalog document from the supplied URL.
func Load(ctx context.Context, URL string) (*Catalog, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("policy: failed to read catalog at %s: %w", URL, err)
	}
	catalog := &Catalog{}
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("policy: malformed catalog at %s: %w", URL, err)
	}
	return catalog, nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithCatalog embeds the catalog in ctx.
func WithCatalog(ctx context.Context, c *Catalog) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, c)
}

// FromContext extracts the catalog, nil when absent.
func FromContext(ctx context.Context) *Catalog {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Catalog); ok {
		return v
	}
	return nil
}
