package domain

import "fmt"

// ReconciliationPlan is an immutable snapshot of one reconciliation pass.
// Every managed path appears in exactly one of the four sets, each kept in
// registry order.
type ReconciliationPlan struct {
	ToCreate  []string
	ToRestore []string
	ToReset   []string
	Unchanged []string
	Entries   map[string]PlanEntry
}

// NewReconciliationPlan creates an empty plan.
func NewReconciliationPlan() *ReconciliationPlan {
	return &ReconciliationPlan{
		ToCreate:  make([]string, 0),
		ToRestore: make([]string, 0),
		ToReset:   make([]string, 0),
		Unchanged: make([]string, 0),
		Entries:   make(map[string]PlanEntry),
	}
}

// Add classifies a path. It returns false if the path was already classified.
func (p *ReconciliationPlan) Add(entry PlanEntry) bool {
	path := entry.Template.Path
	if _, dup := p.Entries[path]; dup {
		return false
	}
	p.Entries[path] = entry

	switch entry.Action {
	case ActionCreate:
		p.ToCreate = append(p.ToCreate, path)
	case ActionRestore:
		p.ToRestore = append(p.ToRestore, path)
	case ActionReset:
		p.ToReset = append(p.ToReset, path)
	default:
		p.Unchanged = append(p.Unchanged, path)
	}
	return true
}

// NeedsDecisions is true iff some path is ambiguous.
func (p *ReconciliationPlan) NeedsDecisions() bool {
	return len(p.ToReset) > 0
}

// IsEmpty reports whether executing the plan would do nothing.
func (p *ReconciliationPlan) IsEmpty() bool {
	return len(p.ToCreate) == 0 && len(p.ToRestore) == 0 && len(p.ToReset) == 0
}

// ActionFor returns the classification of path.
func (p *ReconciliationPlan) ActionFor(path string) (Action, bool) {
	e, ok := p.Entries[path]
	return e.Action, ok
}

// Len returns the number of managed paths in the plan.
func (p *ReconciliationPlan) Len() int {
	return len(p.Entries)
}

// ValidateDecisions checks decisions only name to_reset paths with a known disposition.
func (p *ReconciliationPlan) ValidateDecisions(d ReconciliationDecisions) error {
	for path, disp := range d {
		action, ok := p.ActionFor(path)
		if !ok || action != ActionReset {
			return fmt.Errorf("%w: %s is not awaiting a decision", ErrInvalidDecision, path)
		}
		switch disp {
		case KeepLocal, Overwrite, Delete, "":
		default:
			return fmt.Errorf("%w: unknown disposition %q for %s", ErrInvalidDecision, disp, path)
		}
	}
	return nil
}
