package cleanup

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleCount   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1)
	styleFooterK = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Confirm decides whether a plan should proceed. When assumeYes is set
// it answers without prompting; otherwise, when stdout is a terminal,
// it runs a small bubbletea yes/no prompt describing the plan; with
// neither a TTY nor --yes it refuses, treating silence as "don't
// destroy".
func Confirm(plan Plan, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false, nil
	}
	return runConfirmPrompt(plan, os.Stdout)
}

func runConfirmPrompt(plan Plan, out io.Writer) (bool, error) {
	p := tea.NewProgram(newConfirmModel(plan), tea.WithOutput(out))
	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}
	m, ok := finalModel.(confirmModel)
	if !ok {
		return false, nil
	}
	return m.confirmed, nil
}

type confirmModel struct {
	plan      Plan
	confirmed bool
	done      bool
}

func newConfirmModel(plan Plan) confirmModel {
	return confirmModel{plan: plan}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		m.confirmed = true
		m.done = true
		return m, tea.Quit
	case "n", "N", "esc", "ctrl+c":
		m.confirmed = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(styleTitle.Render("cleanup sweep"))
	b.WriteString("\n\n")
	b.WriteString(styleCount.Render(fmt.Sprintf("  %d jobs", len(m.plan.Jobs))))
	b.WriteString("\n")
	b.WriteString(styleCount.Render(fmt.Sprintf("  %d worktrees", len(m.plan.Worktrees))))
	b.WriteString("\n")
	b.WriteString(styleCount.Render(fmt.Sprintf("  %d repo caches", len(m.plan.RepoCacheDirs))))
	b.WriteString("\n\n")
	b.WriteString(styleWarn.Render("This removes the above permanently."))
	b.WriteString("\n")
	b.WriteString(styleFooter.Render(styleFooterK.Render("y") + " proceed  " + styleFooterK.Render("n") + " cancel"))
	return b.String()
}
