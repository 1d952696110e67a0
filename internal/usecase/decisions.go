package usecase

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// ParseDisposition accepts the --decision flag spellings.
func ParseDisposition(s string) (domain.Disposition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep", "keep-local":
		return domain.KeepLocal, nil
	case "overwrite", "overwrite-with-template":
		return domain.Overwrite, nil
	case "delete":
		return domain.Delete, nil
	}
	return "", fmt.Errorf("%w: unknown disposition %q (want keep, overwrite or delete)", domain.ErrInvalidDecision, s)
}

// FixedDecision applies disp to every ambiguous always-managed path.
// Create-only and never-overwrite-if-present paths belong to the user once
// they exist, so a blanket policy keeps them local; only a per-path choice
// (the interactive prompt) overwrites or deletes them.
func FixedDecision(disp domain.Disposition) DecisionFunc {
	return func(plan *domain.ReconciliationPlan) (domain.ReconciliationDecisions, error) {
		decisions := make(domain.ReconciliationDecisions, len(plan.ToReset))
		if disp == domain.KeepLocal {
			return decisions, nil
		}
		for _, p := range plan.ToReset {
			if plan.Entries[p].Template.Policy != domain.PolicyAlwaysManaged {
				continue
			}
			decisions[p] = disp
		}
		return decisions, nil
	}
}
