package display

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompt is a yes/no question. No is preselected.
type Prompt struct {
	title   string
	message string
	styles  Styles

	yes  bool
	done bool
}

func NewPrompt(title, message string, styles Styles) Prompt {
	return Prompt{title: title, message: message, styles: styles}
}

// Answer is true only for a confirmed yes.
func (p Prompt) Answer() bool {
	return p.done && p.yes
}

func (p Prompt) Done() bool {
	return p.done
}

func (p Prompt) Init() tea.Cmd {
	return nil
}

func (p Prompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "y", "Y":
		p.yes, p.done = true, true
		return p, tea.Quit
	case "n", "N", "q", "esc", "ctrl+c":
		p.yes, p.done = false, true
		return p, tea.Quit
	case "enter":
		p.done = true
		return p, tea.Quit
	case "left", "right", "tab", "shift+tab", "h", "l":
		p.yes = !p.yes
	}
	return p, nil
}

func (p Prompt) View() string {
	if p.done {
		return ""
	}
	yes, no := p.styles.Option, p.styles.Selected
	if p.yes {
		yes, no = p.styles.Selected, p.styles.Option
	}
	var b strings.Builder
	b.WriteString(p.styles.Title.Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.message)
	b.WriteString("\n\n")
	b.WriteString(yes.Render("Yes"))
	b.WriteString(" ")
	b.WriteString(no.Render("No"))
	b.WriteString("\n")
	b.WriteString(p.styles.Muted.Render("y/n, enter to choose"))
	b.WriteString("\n")
	return b.String()
}
