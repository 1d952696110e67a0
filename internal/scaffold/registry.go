// Package scaffold declares the managed files of a control directory.
package scaffold

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// reservedPrefixes are engine-owned paths that templates may not claim.
var reservedPrefixes = []string{".lock", "state", "cache", "data"}

// Registry is the immutable, ordered set of managed file templates for one
// tool version. Directories always precede the paths beneath them.
type Registry struct {
	templates []domain.ManagedFileTemplate
	index     map[string]int
}

// NewRegistry creates a registry with the default template set.
func NewRegistry() (*Registry, error) {
	templates, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	return NewRegistryWithTemplates(templates...)
}

// NewRegistryWithTemplates creates a registry from explicit templates (for testing).
func NewRegistryWithTemplates(templates ...domain.ManagedFileTemplate) (*Registry, error) {
	ordered := make([]domain.ManagedFileTemplate, len(templates))
	copy(ordered, templates)

	// Stable by depth: parents first, declaration order otherwise
	sort.SliceStable(ordered, func(i, j int) bool {
		return depth(ordered[i].Path) < depth(ordered[j].Path)
	})

	r := &Registry{
		templates: ordered,
		index:     make(map[string]int, len(ordered)),
	}
	for i, t := range ordered {
		if err := validateTemplate(t); err != nil {
			return nil, err
		}
		if _, dup := r.index[t.Path]; dup {
			return nil, fmt.Errorf("duplicate managed path %q", t.Path)
		}
		r.index[t.Path] = i
	}

	// A declared ancestor must be a directory
	for _, t := range ordered {
		for dir := path.Dir(t.Path); dir != "."; dir = path.Dir(dir) {
			if i, ok := r.index[dir]; ok && !ordered[i].IsDir() {
				return nil, fmt.Errorf("managed path %q is nested under file %q", t.Path, dir)
			}
		}
	}

	return r, nil
}

func validateTemplate(t domain.ManagedFileTemplate) error {
	p := t.Path
	switch {
	case p == "" || p == ".":
		return fmt.Errorf("managed path is empty")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("managed path %q must be relative", p)
	case path.Clean(p) != p:
		return fmt.Errorf("managed path %q is not clean", p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("managed path %q escapes the control directory", p)
	}

	first := strings.SplitN(p, "/", 2)[0]
	for _, reserved := range reservedPrefixes {
		if first == reserved {
			return fmt.Errorf("managed path %q is reserved for internal state", p)
		}
	}

	switch t.Kind {
	case domain.KindDirectory:
	case domain.KindFile:
		if t.Generate == nil {
			return fmt.Errorf("managed file %q has no content generator", p)
		}
	default:
		return fmt.Errorf("managed path %q has unknown kind %q", p, t.Kind)
	}

	switch t.Policy {
	case domain.PolicyAlwaysManaged, domain.PolicyCreateOnly, domain.PolicyNeverOverwriteIfPresent:
	default:
		return fmt.Errorf("managed path %q has unknown policy %q", p, t.Policy)
	}
	return nil
}

func depth(p string) int {
	return strings.Count(p, "/")
}

// Templates returns the templates in reconciliation order.
func (r *Registry) Templates() []domain.ManagedFileTemplate {
	out := make([]domain.ManagedFileTemplate, len(r.templates))
	copy(out, r.templates)
	return out
}

// Get returns the template for a managed path.
func (r *Registry) Get(p string) (domain.ManagedFileTemplate, bool) {
	i, ok := r.index[p]
	if !ok {
		return domain.ManagedFileTemplate{}, false
	}
	return r.templates[i], true
}

// Generate renders the canonical content of a managed file.
// Directories have no content.
func (r *Registry) Generate(p string, ctx domain.ProjectContext) ([]byte, error) {
	t, ok := r.Get(p)
	if !ok {
		return nil, fmt.Errorf("path %q is not managed", p)
	}
	if t.IsDir() {
		return nil, nil
	}
	return t.Generate(ctx)
}

// Paths returns every managed path in order.
func (r *Registry) Paths() []string {
	out := make([]string, len(r.templates))
	for i, t := range r.templates {
		out[i] = t.Path
	}
	return out
}

// Len returns the number of managed paths.
func (r *Registry) Len() int {
	return len(r.templates)
}

// RequiredFields returns every project field any generator needs, sorted.
func (r *Registry) RequiredFields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.templates {
		for _, f := range t.Required {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}
