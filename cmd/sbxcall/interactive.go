package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/taintbox/backend/wasm"
	"github.com/wippyai/taintbox/sandbox"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("60")).Padding(0, 1)
	funcStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	typeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	resultStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("120"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type interactiveModel struct {
	err      error
	sbx      *sandbox.Sandbox
	be       *wasm.Backend
	filename string
	memLimit uint32
	result   string
	funcs    []wasm.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename string, memLimit uint32) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		memLimit: memLimit,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	sbx   *sandbox.Sandbox
	be    *wasm.Backend
	funcs []wasm.Export
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	be := wasm.New(wasm.Config{Module: data, MemoryLimitPages: m.memLimit})
	sbx := sandbox.New(be)
	if err := sbx.Create(ctx); err != nil {
		return loadedMsg{err: err}
	}

	funcs := be.Exports()
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })

	return loadedMsg{funcs: funcs, sbx: sbx, be: be}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.sbx != nil {
				m.sbx.Destroy(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.sbx = msg.sbx
		m.be = msg.be

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, typ := range f.Params {
		ti := textinput.New()
		ti.Placeholder = typ
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]

	raw := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		raw[i] = input.Value()
	}
	args, err := parseArgs(raw, f.Params)
	if err != nil {
		return callResultMsg{err: err}
	}

	result, err := callExport(context.Background(), m.sbx, f, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(m.err.Error()) + helpStyle.Render("\n\nq quits.")
	}

	if len(m.funcs) == 0 {
		return "Loading guest module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("sbxcall"))
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(m.filename))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Guest exports:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("up/down move, enter invoke, q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Arguments for %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field, enter invoke, esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		if m.err != nil {
			b.WriteString(fmt.Sprintf("%s failed:\n\n", funcStyle.Render(f.Name)))
			b.WriteString(errorStyle.Render(m.err.Error()))
		} else {
			b.WriteString(fmt.Sprintf("%s returned:\n\n", funcStyle.Render(f.Name)))
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back to exports, q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f wasm.Export) string {
	var params []string
	for i, typ := range f.Params {
		params = append(params, fmt.Sprintf("arg%d: %s", i, typeStyle.Render(typ)))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + typeStyle.Render(strings.Join(f.Results, ", "))
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(filename string, memLimit uint32) error {
	p := tea.NewProgram(newInteractiveModel(filename, memLimit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
