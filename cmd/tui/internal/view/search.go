package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/smartreceipts/internal/client"
	"github.com/MrJamesThe3rd/smartreceipts/internal/search"
)

const searchLimit = search.DefaultLimit

type SearchModel struct {
	CommonModel
	client *client.Client

	input    textinput.Model
	spinner  spinner.Model
	running  bool
	outcome  *search.Outcome
	err      error
	lastText string
}

func NewSearchModel(c *client.Client) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. laptop warranty, sony headphones"
	ti.Width = 50
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return SearchModel{client: c, input: ti, spinner: s}
}

func (m SearchModel) Title() string { return "Smart Search" }

func (m SearchModel) ShortHelp() string { return "Enter: search | Esc: back" }

func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case searchResultMsg:
		m.running = false
		m.outcome = msg.outcome
		m.err = msg.err

		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			return m, Back
		case tea.KeyEnter:
			if m.running {
				return m, nil
			}

			m.lastText = m.input.Value()
			m.running = true
			m.err = nil

			return m, tea.Batch(m.spinner.Tick, m.searchCmd(m.lastText))
		}
	}

	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString("Search your receipts:\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.running:
		fmt.Fprintf(&b, "%s Searching...", m.spinner.View())
	case m.err != nil:
		b.WriteString(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	case m.outcome != nil:
		b.WriteString(m.viewOutcome())
	}

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

func (m SearchModel) viewOutcome() string {
	var b strings.Builder

	if msg := m.outcome.Message(); msg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(msg))
		b.WriteString("\n\n")
	}

	if len(m.outcome.Results) == 0 {
		fmt.Fprintf(&b, "No receipts match %q.", m.lastText)
		return b.String()
	}

	fmt.Fprintf(&b, "%d results (%s)\n\n", len(m.outcome.Results), m.outcome.Tier)

	for _, r := range m.outcome.Results {
		title := r.Title
		if r.Model != "" {
			title += " " + r.Model
		}

		fmt.Fprintf(&b, "%s  %-12s %-30s %10s  %3.0f%%\n",
			FormatDate(r.PurchaseDate),
			r.Brand,
			title,
			FormatAmount(r.Amount),
			r.RelevanceScore*100,
		)
	}

	return b.String()
}

type searchResultMsg struct {
	outcome *search.Outcome
	err     error
}

func (m SearchModel) searchCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		out, err := m.client.Search(ctx, text, searchLimit)

		return searchResultMsg{outcome: out, err: err}
	}
}
