package prompt

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/trackd/internal/domain"
)

func resetPlan(paths ...string) *domain.ReconciliationPlan {
	plan := domain.NewReconciliationPlan()
	for _, p := range paths {
		plan.Add(domain.PlanEntry{
			Template: domain.ManagedFileTemplate{Path: p, Kind: domain.KindFile},
			Action:   domain.ActionReset,
		})
	}
	plan.Add(domain.PlanEntry{
		Template: domain.ManagedFileTemplate{Path: "unchanged.md", Kind: domain.KindFile},
		Action:   domain.ActionUnchanged,
	})
	return plan
}

func press(t *testing.T, model Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var updated tea.Model
		updated, cmd = model.Update(k)
		model = updated.(Model)
	}
	return model, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelDefaultsToKeepLocal(t *testing.T) {
	model := NewModel(resetPlan("a.md", "b.md"))

	decisions := model.Decisions()
	assert.Equal(t, domain.ReconciliationDecisions{
		"a.md": domain.KeepLocal,
		"b.md": domain.KeepLocal,
	}, decisions)
}

func TestModelOnlyOffersResetPaths(t *testing.T) {
	model := NewModel(resetPlan("a.md"))

	view := model.View()
	assert.Contains(t, view, "a.md")
	assert.NotContains(t, view, "unchanged.md")
}

func TestModelCycleAndConfirm(t *testing.T) {
	model := NewModel(resetPlan("a.md", "b.md", "c.md"))

	model, cmd := press(t, model,
		tea.KeyMsg{Type: tea.KeyRight}, // a.md -> overwrite
		tea.KeyMsg{Type: tea.KeyDown},  // cursor b.md
		tea.KeyMsg{Type: tea.KeyLeft},  // b.md -> delete (wraps)
		runes("j"),                     // cursor c.md
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
	assert.False(t, model.Aborted())

	assert.Equal(t, domain.ReconciliationDecisions{
		"a.md": domain.Overwrite,
		"b.md": domain.Delete,
		"c.md": domain.KeepLocal,
	}, model.Decisions())
	assert.Empty(t, model.View())
}

func TestModelCursorWraps(t *testing.T) {
	model := NewModel(resetPlan("a.md", "b.md"))

	model, _ = press(t, model, runes("k"), runes("l"))
	assert.Equal(t, domain.Overwrite, model.Decisions()["b.md"])
	assert.Equal(t, domain.KeepLocal, model.Decisions()["a.md"])
}

func TestModelSetAll(t *testing.T) {
	model := NewModel(resetPlan("a.md", "b.md"))

	model, _ = press(t, model, runes("O"))
	assert.Equal(t, domain.Overwrite, model.Decisions()["a.md"])
	assert.Equal(t, domain.Overwrite, model.Decisions()["b.md"])

	model, _ = press(t, model, runes("D"))
	assert.Equal(t, domain.Delete, model.Decisions()["a.md"])

	model, _ = press(t, model, runes("K"))
	assert.Equal(t, domain.KeepLocal, model.Decisions()["b.md"])
}

func TestModelAbortKeepsEverything(t *testing.T) {
	for name, key := range map[string]tea.KeyMsg{
		"q":      runes("q"),
		"escape": {Type: tea.KeyEscape},
		"ctrl+c": {Type: tea.KeyCtrlC},
	} {
		t.Run(name, func(t *testing.T) {
			model := NewModel(resetPlan("a.md"))
			model, _ = press(t, model, runes("D"))

			model, cmd := press(t, model, key)
			require.NotNil(t, cmd)
			assert.True(t, model.Aborted())
			assert.Equal(t, domain.KeepLocal, model.Decisions()["a.md"])
		})
	}
}

func TestModelIgnoresOtherMessages(t *testing.T) {
	model := NewModel(resetPlan("a.md"))

	updated, cmd := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Nil(t, cmd)
	assert.Equal(t, model.Decisions(), updated.(Model).Decisions())
}

func TestAskWithoutAmbiguousPaths(t *testing.T) {
	decisions, err := Ask(domain.NewReconciliationPlan(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}
