package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/host"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	bridge   *bridge.Bridge
	rt       wazero.Runtime
	module   *host.Module
	invoker  *host.Invoker
	opts     host.Options
	source   string
	result   string
	funcs    []host.Function
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

func newInteractiveModel(b *bridge.Bridge, opts host.Options, source string) *interactiveModel {
	return &interactiveModel{
		bridge: b,
		opts:   opts,
		source: source,
		state:  stateSelectFunc,
	}
}

type loadedMsg struct {
	err     error
	rt      wazero.Runtime
	module  *host.Module
	invoker *host.Invoker
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

	rt := wazero.NewRuntime(ctx)
	mod := host.New(m.bridge, m.opts)
	if _, err := mod.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	iv, err := host.NewInvoker(ctx, rt, mod)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{rt: rt, module: mod, invoker: iv}
}

func (m *interactiveModel) close() {
	ctx := context.Background()
	if m.module != nil {
		m.module.Close()
	}
	if m.invoker != nil {
		m.invoker.Close(ctx)
	}
	if m.rt != nil {
		m.rt.Close(ctx)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.close()
				return m, tea.Quit
			}

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
		m.rt = msg.rt
		m.module = msg.module
		m.invoker = msg.invoker
		m.funcs = host.Catalog()

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
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = placeholder(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func placeholder(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok {
		if l, ok := td.Kind.(*wit.List); ok {
			if _, ok := l.Type.(*wit.TypeDef); ok {
				return "x,y x,y ..."
			}
		}
	}
	return host.TypeString(t)
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.invoker == nil {
		return callResultMsg{err: fmt.Errorf("host module not loaded")}
	}
	f := m.funcs[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = strings.TrimSpace(input.Value())
	}

	res, err := m.invoker.Invoke(context.Background(), f.Name, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatResult(f, res)}
}

func formatResult(f host.Function, v uint64) string {
	if len(f.Results) == 0 {
		return "ok"
	}
	switch f.Results[0].(type) {
	case wit.U64:
		return fmt.Sprintf("handle %#x", v)
	case wit.Bool:
		return fmt.Sprintf("%t", v != 0)
	}
	return fmt.Sprintf("%d", uint32(v))
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading host module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("gdsbridge"))
	b.WriteString(" ")
	b.WriteString(m.opts.ModuleName)
	if m.source != "" {
		b.WriteString(" ")
		b.WriteString(m.source)
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a host function to call:\n\n")
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
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(host.TypeString(f.Params[i].Type)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(m.status()))
	return b.String()
}

func (m *interactiveModel) status() string {
	s := m.bridge.Stats()
	handles := 0
	if m.module != nil {
		handles = m.module.Handles()
	}
	return fmt.Sprintf("handles %d • blocks %d • owners %d • links %d • members %d • callbacks %d",
		handles, s.Blocks, s.Owned, s.Links, s.Members, s.Callbacks)
}

func (m *interactiveModel) formatFunc(f host.Function) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+typeStyle.Render(host.TypeString(p.Type)))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + typeStyle.Render(host.TypeString(f.Results[0]))
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(b *bridge.Bridge, opts host.Options, source string) error {
	p := tea.NewProgram(newInteractiveModel(b, opts, source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
