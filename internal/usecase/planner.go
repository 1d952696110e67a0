// Package usecase contains application business logic.
package usecase

import "github.com/eliteGoblin/trackd/internal/domain"

// BuildPlan classifies every template against what the probe observed and the
// last-reconciled hash records. The first matching rule wins:
//
//  1. missing, policy permits creation       -> create
//  2. missing, never-overwrite-if-present    -> unchanged
//  3. present, hash == expected              -> unchanged
//  4. present, hash == last reconciled       -> restore
//  5. present, otherwise                     -> reset
func BuildPlan(
	infos map[string]domain.FileInfo,
	templates []domain.ManagedFileTemplate,
	lastReconciled map[string]string,
) *domain.ReconciliationPlan {
	plan := domain.NewReconciliationPlan()

	for _, tmpl := range templates {
		info, ok := infos[tmpl.Path]
		if !ok {
			info = domain.FileInfo{Path: tmpl.Path}
		}
		last, hasRecord := lastReconciled[tmpl.Path]
		info.LastReconciledHash = last

		plan.Add(domain.PlanEntry{
			Template: tmpl,
			Info:     info,
			Content:  info.Expected,
			Action:   classify(tmpl, info, hasRecord),
		})
	}
	return plan
}

func classify(tmpl domain.ManagedFileTemplate, info domain.FileInfo, hasRecord bool) domain.Action {
	if !info.Exists {
		if tmpl.Policy == domain.PolicyNeverOverwriteIfPresent {
			return domain.ActionUnchanged
		}
		return domain.ActionCreate
	}

	// Kind mismatches are never resolved without a decision
	if tmpl.IsDir() != info.IsDir {
		return domain.ActionReset
	}
	if tmpl.IsDir() {
		return domain.ActionUnchanged
	}

	switch {
	case info.ActualHash == info.ExpectedHash:
		return domain.ActionUnchanged
	case hasRecord && info.ActualHash == info.LastReconciledHash:
		return domain.ActionRestore
	default:
		return domain.ActionReset
	}
}
