// Package schema holds the versioned migrations of every persisted data family.
package schema

import (
	"sort"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// Registry is the immutable migration catalog, validated at construction.
type Registry struct {
	families map[string][]domain.MigrationDefinition
}

// NewRegistry validates and indexes migration definitions. Each family must
// form a contiguous chain starting at version 0.
func NewRegistry(defs ...domain.MigrationDefinition) (*Registry, error) {
	r := &Registry{families: make(map[string][]domain.MigrationDefinition)}

	for _, d := range defs {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		r.families[d.Family] = append(r.families[d.Family], d)
	}

	for family, chain := range r.families {
		sort.SliceStable(chain, func(i, j int) bool { return chain[i].From < chain[j].From })
		if err := validateChain(family, chain); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns the registry of every family shipped with this release.
func Default() (*Registry, error) {
	var defs []domain.MigrationDefinition
	defs = append(defs, IssuesMigrations()...)
	defs = append(defs, BoardsMigrations()...)
	defs = append(defs, IndexMigrations()...)
	return NewRegistry(defs...)
}

func validateDefinition(d domain.MigrationDefinition) error {
	invalid := func() error {
		return &domain.ChainError{Family: d.Family, From: d.From, To: d.To, Err: domain.ErrChainInvalid}
	}
	switch {
	case d.Family == "":
		return invalid()
	case d.From < 0 || d.To <= d.From:
		return invalid()
	case d.Forward == nil || d.Backward == nil:
		return invalid()
	}
	return nil
}

func validateChain(family string, chain []domain.MigrationDefinition) error {
	if first := chain[0]; first.From != 0 {
		return &domain.ChainError{Family: family, From: 0, To: first.From, Err: domain.ErrChainGap}
	}
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		switch {
		case cur.From == prev.From:
			return &domain.ChainError{Family: family, From: cur.From, To: cur.To, Err: domain.ErrChainDuplicate}
		case cur.From > prev.To:
			return &domain.ChainError{Family: family, From: prev.To, To: cur.From, Err: domain.ErrChainGap}
		case cur.From < prev.To:
			// Overlapping ranges, e.g. 0->2 followed by 1->3
			return &domain.ChainError{Family: family, From: cur.From, To: prev.To, Err: domain.ErrChainDuplicate}
		}
	}
	return nil
}

// MigrationsFor returns a family's migrations sorted by from-version.
func (r *Registry) MigrationsFor(family string) []domain.MigrationDefinition {
	chain := r.families[family]
	out := make([]domain.MigrationDefinition, len(chain))
	copy(out, chain)
	return out
}

// Families returns every registered family, sorted.
func (r *Registry) Families() []string {
	out := make([]string, 0, len(r.families))
	for f := range r.families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Latest returns the highest to-version of a family, 0 if it has none.
func (r *Registry) Latest(family string) int {
	chain := r.families[family]
	if len(chain) == 0 {
		return 0
	}
	return chain[len(chain)-1].To
}

// Path returns the migrations that move family from one version to another,
// in application order, or a ChainError wrapping ErrNoPath.
func (r *Registry) Path(family string, from, to int) ([]domain.MigrationDefinition, domain.Direction, error) {
	if from == to {
		return nil, domain.DirectionNone, nil
	}
	noPath := &domain.ChainError{Family: family, From: from, To: to, Err: domain.ErrNoPath}

	chain := r.families[family]
	byFrom := make(map[int]domain.MigrationDefinition, len(chain))
	byTo := make(map[int]domain.MigrationDefinition, len(chain))
	for _, d := range chain {
		byFrom[d.From] = d
		byTo[d.To] = d
	}

	var steps []domain.MigrationDefinition
	if to > from {
		for cur := from; cur < to; {
			d, ok := byFrom[cur]
			if !ok || d.To > to {
				return nil, domain.DirectionUp, noPath
			}
			steps = append(steps, d)
			cur = d.To
		}
		return steps, domain.DirectionUp, nil
	}

	for cur := from; cur > to; {
		d, ok := byTo[cur]
		if !ok || d.From < to {
			return nil, domain.DirectionDown, noPath
		}
		steps = append(steps, d)
		cur = d.From
	}
	return steps, domain.DirectionDown, nil
}

// Ensure Registry implements domain.MigrationCatalog.
var _ domain.MigrationCatalog = (*Registry)(nil)
