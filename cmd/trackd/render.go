package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/usecase"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	createdStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	restoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	keptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	deletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

func renderList(b *strings.Builder, title string, style lipgloss.Style, list []string) {
	if len(list) == 0 {
		return
	}
	b.WriteString(style.Render(title) + "\n")
	for _, f := range list {
		b.WriteString(fmt.Sprintf("  %s\n", f))
	}
}

// FormatPlan renders the classification of every managed path.
func FormatPlan(plan *domain.ReconciliationPlan, verbose bool) string {
	var b strings.Builder
	if plan.IsEmpty() {
		b.WriteString(successStyle.Render(fmt.Sprintf("All %d managed paths are up to date.", plan.Len())) + "\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render("Reconciliation plan") + "\n\n")
	renderList(&b, "Create:", createdStyle, plan.ToCreate)
	renderList(&b, "Restore:", restoredStyle, plan.ToRestore)
	renderList(&b, "Edited locally (needs a decision):", keptStyle, plan.ToReset)
	if verbose {
		renderList(&b, "Unchanged:", mutedStyle, plan.Unchanged)
	} else if n := len(plan.Unchanged); n > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d unchanged", n)) + "\n")
	}
	return b.String()
}

// FormatResult renders what an execute call did.
func FormatResult(r *domain.ReconciliationResult) string {
	var b strings.Builder
	if !r.Changed() && len(r.Kept) == 0 && r.OK() {
		b.WriteString(successStyle.Render("Nothing to do.") + "\n")
		return b.String()
	}

	renderList(&b, "Created:", createdStyle, r.Created)
	renderList(&b, "Restored:", restoredStyle, r.Restored)
	renderList(&b, "Overwritten:", successStyle, r.Overwritten)
	renderList(&b, "Kept local edits:", keptStyle, r.Kept)
	renderList(&b, "Deleted:", deletedStyle, r.Deleted)

	if len(r.Failed) > 0 {
		failed := make([]string, 0, len(r.Failed))
		for _, f := range r.Failed {
			failed = append(failed, fmt.Sprintf("%s (%s): %v", f.Path, f.Op, f.Err))
		}
		renderList(&b, "Failed:", errorStyle, failed)
	}
	if r.Err != nil {
		b.WriteString(errorStyle.Render("Stopped: "+r.Err.Error()) + "\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("took %s", time.Duration(r.DurationMs)*time.Millisecond)) + "\n")
	return b.String()
}

// FormatMigrations renders one line per family plus any failure details.
func FormatMigrations(results []*domain.MigrationResult) string {
	var b strings.Builder
	for _, r := range results {
		switch {
		case !r.Succeeded():
			b.WriteString(errorStyle.Render(fmt.Sprintf("%-8s v%d -> v%d failed, data left at v%d", r.Family, r.From, r.Target, r.LastGood)) + "\n")
			if r.Err != nil {
				b.WriteString(fmt.Sprintf("  %v\n", r.Err))
			}
		case len(r.Applied) == 0:
			b.WriteString(mutedStyle.Render(fmt.Sprintf("%-8s at v%d", r.Family, r.To)) + "\n")
		default:
			b.WriteString(successStyle.Render(fmt.Sprintf("%-8s v%d -> v%d (%s)", r.Family, r.From, r.To, r.Direction)) + "\n")
			for _, id := range r.Applied {
				b.WriteString(fmt.Sprintf("  %s\n", id))
			}
		}
		if r.Snapshot != "" {
			b.WriteString(mutedStyle.Render("  snapshot: "+r.Snapshot) + "\n")
		}
	}
	return b.String()
}

// FormatStatus renders the status command output.
func FormatStatus(root string, plan *domain.ReconciliationPlan, versions []usecase.FamilyVersion, daemon *domain.DaemonRecord, daemonAlive bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("trackd "+root) + "\n\n")

	b.WriteString("Managed files: ")
	if plan.IsEmpty() {
		b.WriteString(successStyle.Render("in sync") + "\n")
	} else {
		b.WriteString(keptStyle.Render(fmt.Sprintf("%d to create, %d to restore, %d edited locally",
			len(plan.ToCreate), len(plan.ToRestore), len(plan.ToReset))) + "\n")
	}

	b.WriteString("\nData families:\n")
	for _, v := range versions {
		line := fmt.Sprintf("  %-8s v%d", v.Family, v.Current)
		if v.Current < v.Latest {
			b.WriteString(keptStyle.Render(fmt.Sprintf("%s (latest v%d, run 'trackd migrate')", line, v.Latest)) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\nDaemon: ")
	switch {
	case daemon == nil:
		b.WriteString(mutedStyle.Render("not running") + "\n")
	case !daemonAlive:
		b.WriteString(errorStyle.Render(fmt.Sprintf("stale registration (pid %d not running)", daemon.PID)) + "\n")
	default:
		b.WriteString(successStyle.Render(fmt.Sprintf("running (pid %d, every %s)", daemon.PID, daemon.Interval)) + "\n")
		if !daemon.LastHeartbeat.IsZero() {
			b.WriteString(fmt.Sprintf("  last pass %s ago\n", time.Since(daemon.LastHeartbeat).Round(time.Second)))
		}
	}
	return b.String()
}

// FormatTemplates renders the registry in reconciliation order.
func FormatTemplates(templates []domain.ManagedFileTemplate) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Managed paths") + "\n")
	for _, t := range templates {
		path := t.Path
		if t.IsDir() {
			path += "/"
		}
		b.WriteString(fmt.Sprintf("  %-28s %s\n", path, mutedStyle.Render(string(t.Policy))))
	}
	return b.String()
}
