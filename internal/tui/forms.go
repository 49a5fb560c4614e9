package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field struct {
	label  string
	secret bool
}

// form is a vertical stack of text inputs with one focused at a time.
type form struct {
	fields     []field
	inputs     []textinput.Model
	focus      int
	submitting bool
	err        string
}

func newInput(placeholder string, secret bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Prompt = ""
	in.CharLimit = 512
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

func newForm(fields ...field) form {
	f := form{fields: fields}
	for _, fl := range fields {
		f.inputs = append(f.inputs, newInput(fl.label, fl.secret))
	}
	return f
}

func (f *form) focusFirst() { f.setFocus(0) }

func (f *form) setFocus(i int) {
	if len(f.inputs) == 0 {
		return
	}
	i = (i%len(f.inputs) + len(f.inputs)) % len(f.inputs)
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	f.focus = i
}

func (f *form) value(i int) string { return strings.TrimSpace(f.inputs[i].Value()) }

// raw keeps surrounding whitespace; passwords are taken as typed.
func (f *form) raw(i int) string { return f.inputs[i].Value() }

func (f *form) set(i int, v string) { f.inputs[i].SetValue(v) }

func (f *form) clear(i int) { f.inputs[i].SetValue("") }

func (f *form) dirty() bool {
	for _, in := range f.inputs {
		if in.Value() != "" {
			return true
		}
	}
	return false
}

func (f *form) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.submitting = false
	f.err = ""
	f.focusFirst()
}

func (f *form) fail(msg string) {
	f.submitting = false
	f.err = msg
}

// begin marks the form as submitting; false while a submission is already running.
func (f *form) begin() bool {
	if f.submitting {
		return false
	}
	f.submitting = true
	f.err = ""
	return true
}

// update handles focus movement and typing. submit reports an enter on the last field.
func (f *form) update(msg tea.KeyMsg) (cmd tea.Cmd, submit bool) {
	switch msg.String() {
	case "tab", "down":
		f.setFocus(f.focus + 1)
		return nil, false
	case "shift+tab", "up":
		f.setFocus(f.focus - 1)
		return nil, false
	case "enter":
		if f.focus < len(f.inputs)-1 {
			f.setFocus(f.focus + 1)
			return nil, false
		}
		return nil, true
	}
	f.err = ""
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, false
}

func (f *form) view(title string, width int) string {
	labelW := 0
	for _, fl := range f.fields {
		labelW = max(labelW, len(fl.label))
	}
	inputW := max(width-labelW-6, 16)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")
	for i, fl := range f.fields {
		label := padRight(fl.label, labelW)
		if i == f.focus {
			label = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render(label)
		} else {
			label = styleMuted().Render(label)
		}
		f.inputs[i].Width = inputW
		b.WriteString(label + "  " + f.inputs[i].View() + "\n")
	}
	switch {
	case f.submitting:
		b.WriteString("\n" + styleMuted().Render("Working..."))
	case f.err != "":
		b.WriteString("\n" + styleToast(false).Render(f.err))
	}
	return b.String()
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
