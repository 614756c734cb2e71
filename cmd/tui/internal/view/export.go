package view

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/smartreceipts/internal/client"
	exportapi "github.com/MrJamesThe3rd/smartreceipts/internal/http/export"
	"github.com/MrJamesThe3rd/smartreceipts/internal/library"
)

const exportTimeout = 2 * time.Minute

type exportState int

const (
	exportStateForm exportState = iota
	exportStateExporting
	exportStateResult
)

// exportOptions holds form bindings outside the model, which is copied on every update.
type exportOptions struct {
	status  string
	sortKey string
	path    string
}

type ExportModel struct {
	CommonModel
	client *client.Client

	state   exportState
	err     error
	form    *huh.Form
	spinner spinner.Model

	options *exportOptions

	summary string
	file    string
}

func NewExportModel(c *client.Client) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	opts := &exportOptions{
		path:    "./exports",
		sortKey: string(library.SortDateDesc),
	}

	return ExportModel{
		client:  c,
		options: opts,
		form:    buildExportForm(opts),
		spinner: s,
	}
}

func (m ExportModel) Title() string { return "Export Receipts" }

func (m ExportModel) ShortHelp() string {
	switch m.state {
	case exportStateResult:
		return "Esc: back to menu"
	case exportStateExporting:
		return "Exporting..."
	}

	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state {
	case exportStateForm:
		return m.updateForm(msg)
	case exportStateExporting:
		return m.updateExporting(msg)
	case exportStateResult:
		return m.updateResult(msg)
	}

	return m, nil
}

func (m ExportModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	req := exportapi.Request{Sort: m.options.sortKey}
	if m.options.status != "" {
		req.Statuses = []string{m.options.status}
	}

	m.state = exportStateExporting
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, m.runExportCmd(req, m.options.path))
}

func (m ExportModel) updateExporting(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(exportResultMsg); ok {
		m.state = exportStateResult
		m.err = result.err
		m.summary = result.summary
		m.file = result.file

		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m ExportModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	return m, nil
}

func buildExportForm(opts *exportOptions) *huh.Form {
	statusOptions := []huh.Option[string]{huh.NewOption("All receipts", "")}
	for _, st := range statusFilters[1:] {
		statusOptions = append(statusOptions, huh.NewOption(string(st), string(st)))
	}

	sortOptions := make([]huh.Option[string], 0, len(library.SortKeys))
	for _, k := range library.SortKeys {
		sortOptions = append(sortOptions, huh.NewOption(string(k), string(k)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("status").
				Title("Warranty Status").
				Options(statusOptions...).
				Value(&opts.status),

			huh.NewSelect[string]().
				Key("sort").
				Title("Order").
				Options(sortOptions...).
				Value(&opts.sortKey),

			huh.NewInput().
				Key("path").
				Title("Output Path").
				Description("Directory will be created if it doesn't exist").
				Placeholder("./exports").
				Value(&opts.path),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m ExportModel) View() string {
	switch m.state {
	case exportStateForm:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())

	case exportStateExporting:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("%s Exporting receipts and downloading images...", m.spinner.View()),
		)

	case exportStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ExportModel) viewResult() string {
	if m.err != nil {
		return lipgloss.NewStyle().Padding(1).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render("Export Complete!")

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			"Saved to "+m.file,
			"",
			"Summary:",
			"",
			m.summary,
		),
	)
}

type exportResultMsg struct {
	summary string
	file    string
	err     error
}

func (m ExportModel) runExportCmd(req exportapi.Request, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		meta, err := m.client.ExportSummary(ctx, req)
		if err != nil {
			return exportResultMsg{err: err}
		}

		if len(meta.Items) == 0 {
			return exportResultMsg{err: errors.New("no receipts match the selected warranty status")}
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportResultMsg{err: fmt.Errorf("creating output directory: %w", err)}
		}

		name := filepath.Join(dir, fmt.Sprintf("receipts-%s.zip", time.Now().Format("2006-01-02-150405")))

		f, err := os.Create(name)
		if err != nil {
			return exportResultMsg{err: fmt.Errorf("creating archive: %w", err)}
		}
		defer f.Close()

		if err := m.client.ExportArchive(ctx, req, f); err != nil {
			_ = os.Remove(name)
			return exportResultMsg{err: err}
		}

		return exportResultMsg{summary: meta.Summary, file: name}
	}
}
