package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/smartreceipts/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/smartreceipts/internal/auth"
	"github.com/MrJamesThe3rd/smartreceipts/internal/client"
	"github.com/MrJamesThe3rd/smartreceipts/internal/config"
)

type model struct {
	client  *client.Client
	session *auth.Session
	appName string

	currentView View
	notice      string

	libraryView view.LibraryModel
	searchView  view.SearchModel
	importView  view.ImportModel
	exportView  view.ExportModel
}

type View int

const (
	ViewMenu    View = 0
	ViewLibrary View = 1
	ViewSearch  View = 2
	ViewImport  View = 3
	ViewExport  View = 4
)

type sessionMsg auth.SessionState

func initialModel() (model, *auth.Session) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	session := auth.NewSession()
	if cfg.Client.AccessToken != "" {
		userID, err := auth.Subject(cfg.Client.AccessToken)
		if err != nil {
			slog.Error("invalid access token", "error", err)
			os.Exit(1)
		}

		session.SignIn(cfg.Client.AccessToken, userID)
	}

	c := client.New(cfg.Client.APIURL, session)

	return model{
		client:      c,
		session:     session,
		appName:     cfg.App.Name,
		currentView: ViewMenu,
		libraryView: view.NewLibraryModel(c),
		searchView:  view.NewSearchModel(c),
		importView:  view.NewImportModel(c),
		exportView:  view.NewExportModel(c),
	}, session
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewLibrary
				m.libraryView = view.NewLibraryModel(m.client)

				return m, m.libraryView.Init()
			case "2":
				m.currentView = ViewSearch
				m.searchView = view.NewSearchModel(m.client)

				return m, m.searchView.Init()
			case "3":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.client)

				return m, m.importView.Init()
			case "4":
				m.currentView = ViewExport
				m.exportView = view.NewExportModel(m.client)

				return m, m.exportView.Init()
			}
		}
	case sessionMsg:
		if auth.SessionState(msg) == auth.StateExpired {
			m.notice = "Your session has expired. Set CLIENT_ACCESS_TOKEN and restart."
			m.currentView = ViewMenu
		}

		return m, nil
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewLibrary:
		var newModel tea.Model
		newModel, cmd = m.libraryView.Update(msg)
		m.libraryView = newModel.(view.LibraryModel)
	case ViewSearch:
		var newModel tea.Model
		newModel, cmd = m.searchView.Update(msg)
		m.searchView = newModel.(view.SearchModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		menu := m.appName + "\n\n" +
			"1. Receipt Library\n" +
			"2. Smart Search\n" +
			"3. Import CSV\n" +
			"4. Export Receipts\n\n" +
			"q. Quit"

		if m.session.State() != auth.StateSignedIn {
			menu += "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(
				"Not signed in: set CLIENT_ACCESS_TOKEN to use the library.",
			)
		}

		if m.notice != "" {
			menu += "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.notice)
		}

		return lipgloss.NewStyle().Padding(2).Render(menu)
	}

	active := m.active()
	if active == nil {
		return "Unknown View"
	}

	title := lipgloss.NewStyle().Bold(true).Padding(1, 1, 0).Render(active.Title())
	help := lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(active.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, active.View(), help)
}

func (m model) active() view.View {
	switch m.currentView {
	case ViewLibrary:
		return m.libraryView
	case ViewSearch:
		return m.searchView
	case ViewImport:
		return m.importView
	case ViewExport:
		return m.exportView
	}

	return nil
}

func main() {
	m, session := initialModel()

	p := tea.NewProgram(m)

	unsubscribe := session.Subscribe(func(state auth.SessionState) {
		go p.Send(sessionMsg(state))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
