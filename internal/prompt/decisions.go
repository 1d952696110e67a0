// Package prompt asks a human what to do with managed files that were
// edited locally after the last reconciliation.
package prompt

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/eliteGoblin/trackd/internal/domain"
)

var choices = []domain.Disposition{domain.KeepLocal, domain.Overwrite, domain.Delete}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	keepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	overwriteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	deleteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea model of the decision picker. Every path starts
// as keep-local.
type Model struct {
	paths     []string
	selected  []int
	cursor    int
	confirmed bool
	aborted   bool
}

// NewModel creates a picker over the plan's ambiguous paths.
func NewModel(plan *domain.ReconciliationPlan) Model {
	paths := append([]string(nil), plan.ToReset...)
	return Model{
		paths:    paths,
		selected: make([]int, len(paths)),
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := message.(tea.KeyMsg)
	if !ok {
		return model, nil
	}

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEscape:
		model.aborted = true
		return model, tea.Quit
	case tea.KeyEnter:
		model.confirmed = true
		return model, tea.Quit
	case tea.KeyUp:
		model.moveCursor(-1)
	case tea.KeyDown, tea.KeyTab:
		model.moveCursor(1)
	case tea.KeyLeft:
		model.cycle(-1)
	case tea.KeyRight, tea.KeySpace:
		model.cycle(1)
	case tea.KeyRunes:
		switch string(key.Runes) {
		case "q":
			model.aborted = true
			return model, tea.Quit
		case "k":
			model.moveCursor(-1)
		case "j":
			model.moveCursor(1)
		case "h":
			model.cycle(-1)
		case "l":
			model.cycle(1)
		case "K":
			model.setAll(0)
		case "O":
			model.setAll(1)
		case "D":
			model.setAll(2)
		}
	}
	return model, nil
}

func (model *Model) moveCursor(delta int) {
	if len(model.paths) == 0 {
		return
	}
	model.cursor = (model.cursor + delta + len(model.paths)) % len(model.paths)
}

func (model *Model) cycle(delta int) {
	if len(model.paths) == 0 {
		return
	}
	current := model.selected[model.cursor]
	model.selected[model.cursor] = (current + delta + len(choices)) % len(choices)
}

func (model *Model) setAll(choice int) {
	for i := range model.selected {
		model.selected[i] = choice
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if model.confirmed || model.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d managed file(s) were edited locally", len(model.paths))))
	b.WriteString("\n\n")
	for i, path := range model.paths {
		marker := "  "
		if i == model.cursor {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%-12s %s\n", marker, renderChoice(choices[model.selected[i]]), path))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move  ←/→ change  K/O/D all  enter confirm  q keep all"))
	b.WriteString("\n")
	return b.String()
}

func renderChoice(d domain.Disposition) string {
	switch d {
	case domain.Overwrite:
		return overwriteStyle.Render(string(d))
	case domain.Delete:
		return deleteStyle.Render(string(d))
	default:
		return keepStyle.Render(string(d))
	}
}

// Decisions returns the chosen dispositions. An aborted prompt keeps
// every local edit.
func (model Model) Decisions() domain.ReconciliationDecisions {
	decisions := make(domain.ReconciliationDecisions, len(model.paths))
	for i, path := range model.paths {
		if model.aborted {
			decisions[path] = domain.KeepLocal
			continue
		}
		decisions[path] = choices[model.selected[i]]
	}
	return decisions
}

// Aborted reports whether the user quit without confirming.
func (model Model) Aborted() bool {
	return model.aborted
}

// Ask runs the picker on in/out and returns the decisions. Quitting keeps
// every local edit.
func Ask(plan *domain.ReconciliationPlan, in io.Reader, out io.Writer) (domain.ReconciliationDecisions, error) {
	if !plan.NeedsDecisions() {
		return domain.ReconciliationDecisions{}, nil
	}
	program := tea.NewProgram(NewModel(plan), tea.WithInput(in), tea.WithOutput(out))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run decision prompt: %w", err)
	}
	model, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected prompt model %T", final)
	}
	return model.Decisions(), nil
}

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Terminal returns a decision function bound to the process terminal.
func Terminal() func(*domain.ReconciliationPlan) (domain.ReconciliationDecisions, error) {
	return func(plan *domain.ReconciliationPlan) (domain.ReconciliationDecisions, error) {
		return Ask(plan, os.Stdin, os.Stdout)
	}
}
