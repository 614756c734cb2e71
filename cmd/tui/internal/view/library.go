package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/client"
	"github.com/MrJamesThe3rd/smartreceipts/internal/library"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

type libraryState int

const (
	libraryStateBrowse libraryState = iota
	libraryStateEdit
	libraryStateDelete
)

// statusFilters is cycled with "w"; the empty status means no filter.
var statusFilters = []warranty.Status{
	"",
	warranty.StatusExpired,
	warranty.StatusExpiringSoon,
	warranty.StatusExpiring6m,
	warranty.StatusActive,
}

type LibraryModel struct {
	CommonModel
	client *client.Client

	state libraryState
	table table.Model
	form  *huh.Form

	all     []*receipt.Receipt
	visible []*receipt.Receipt

	sortIdx     int
	statusIdx   int
	brandIdx    int
	categoryIdx int
	brands      []string

	loading bool
	err     error
	status  string

	editGroup bool
	fields    *editFields
}

// editFields holds form bindings outside the model, which is copied on every update.
type editFields struct {
	product  string
	brand    string
	amount   string
	warranty string
	confirm  bool
}

func NewLibraryModel(c *client.Client) LibraryModel {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Brand", Width: 14},
		{Title: "Product", Width: 30},
		{Title: "Amount", Width: 10},
		{Title: "Warranty", Width: 12},
		{Title: "Status", Width: 24},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return LibraryModel{
		client:  c,
		table:   t,
		loading: true,
	}
}

func (m LibraryModel) Title() string { return "Receipt Library" }

func (m LibraryModel) ShortHelp() string {
	switch m.state {
	case libraryStateEdit:
		return "Navigate form | Esc: cancel"
	case libraryStateDelete:
		return "Confirm deletion | Esc: cancel"
	}

	return "Esc: back | e: edit | g: edit group | x: delete | s: sort | w: warranty | b: brand | c: category | r: refresh"
}

func (m LibraryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m LibraryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadLibraryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.all = msg.rows
		m.brands = library.Brands(msg.rows)

		if m.brandIdx > len(m.brands) {
			m.brandIdx = 0
		}

		m.refreshTable()

		return m, nil

	case librarySaveMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = libraryStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)

		return m, nil
	}

	switch m.state {
	case libraryStateBrowse:
		return m.updateBrowse(msg)
	case libraryStateEdit, libraryStateDelete:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m LibraryModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "e":
			return m.enterEditMode(false)
		case "g":
			return m.enterEditMode(true)
		case "x":
			return m.enterDeleteMode()
		case "s":
			m.sortIdx = (m.sortIdx + 1) % len(library.SortKeys)
			m.refreshTable()

			return m, nil
		case "w":
			m.statusIdx = (m.statusIdx + 1) % len(statusFilters)
			m.refreshTable()

			return m, nil
		case "b":
			m.brandIdx = (m.brandIdx + 1) % (len(m.brands) + 1)
			m.refreshTable()

			return m, nil
		case "c":
			m.categoryIdx = (m.categoryIdx + 1) % (len(library.Categories) + 1)
			m.refreshTable()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m LibraryModel) selected() *receipt.Receipt {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return nil
	}

	return m.visible[idx]
}

func (m LibraryModel) enterEditMode(group bool) (tea.Model, tea.Cmd) {
	r := m.selected()
	if r == nil {
		return m, nil
	}

	if group && !r.ReceiptGroupID.Valid {
		m.status = "Selected receipt is not part of a group"
		return m, nil
	}

	m.editGroup = group
	m.fields = &editFields{
		product:  r.ProductDescription,
		brand:    r.BrandName,
		warranty: r.WarrantyPeriod,
	}
	if r.Amount.Valid {
		m.fields.amount = r.Amount.Decimal.StringFixed(2)
	}

	required := func(name string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s cannot be empty", name)
			}
			return nil
		}
	}

	fields := []huh.Field{
		huh.NewInput().
			Key("brand").
			Title("Brand").
			Value(&m.fields.brand).
			Validate(required("brand")),

		huh.NewInput().
			Key("warranty").
			Title("Warranty Period").
			Placeholder("1 year").
			Value(&m.fields.warranty).
			Validate(required("warranty period")),
	}

	// Product and amount are per row and stay out of group edits.
	if !group {
		fields = append([]huh.Field{
			huh.NewInput().
				Key("product").
				Title("Product").
				Value(&m.fields.product).
				Validate(required("product")),

			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("0.00").
				Value(&m.fields.amount).
				Validate(validateAmount),
		}, fields...)
	}

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithWidth(45).WithShowHelp(false)
	m.state = libraryStateEdit
	m.table.Blur()

	return m, m.form.Init()
}

func validateAmount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("amount must be a number")
	}

	if !d.IsPositive() {
		return errors.New("amount must be positive")
	}

	return nil
}

func (m LibraryModel) enterDeleteMode() (tea.Model, tea.Cmd) {
	r := m.selected()
	if r == nil {
		return m, nil
	}

	title := fmt.Sprintf("Delete %s?", r.ProductDescription)
	if r.ReceiptGroupID.Valid {
		title = fmt.Sprintf("Delete %s and every product of its receipt?", r.ProductDescription)
	}

	m.fields = &editFields{}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(title).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&m.fields.confirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = libraryStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m LibraryModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = libraryStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == libraryStateDelete {
		if !m.fields.confirm {
			m.state = libraryStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}

		return m, m.deleteCmd()
	}

	return m, m.saveCmd()
}

func (m LibraryModel) filters() library.Filters {
	var f library.Filters

	if st := statusFilters[m.statusIdx]; st != "" {
		f.Statuses = []warranty.Status{st}
	}

	if m.brandIdx > 0 && m.brandIdx <= len(m.brands) {
		f.Brands = []string{m.brands[m.brandIdx-1]}
	}

	if m.categoryIdx > 0 {
		f.Categories = []string{library.Categories[m.categoryIdx-1].Name}
	}

	return f
}

func (m *LibraryModel) refreshTable() {
	now := time.Now()
	m.visible = library.Apply(m.all, m.filters(), library.SortKeys[m.sortIdx], now)

	rows := make([]table.Row, 0, len(m.visible))
	for _, r := range m.visible {
		info := warranty.Evaluate(r.PurchaseDate, r.WarrantyPeriod, now)

		product := r.ProductDescription
		if r.IsGroupReceipt {
			product = "▸ " + product
		}

		rows = append(rows, table.Row{
			FormatDate(r.PurchaseDate),
			r.BrandName,
			product,
			FormatAmount(r.Amount),
			r.WarrantyPeriod,
			FormatBadge(info),
		})
	}

	m.table.SetRows(rows)

	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m LibraryModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading receipts...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	statusLabel := "All"
	if st := statusFilters[m.statusIdx]; st != "" {
		statusLabel = string(st)
	}

	brandLabel := "All"
	if m.brandIdx > 0 && m.brandIdx <= len(m.brands) {
		brandLabel = m.brands[m.brandIdx-1]
	}

	categoryLabel := "All"
	if m.categoryIdx > 0 {
		categoryLabel = library.Categories[m.categoryIdx-1].Name
	}

	header := fmt.Sprintf(
		"[s] Sort: %s | [w] Warranty: %s | [b] Brand: %s | [c] Category: %s | %d of %d",
		activeStyle(string(library.SortKeys[m.sortIdx])),
		activeStyle(statusLabel),
		activeStyle(brandLabel),
		activeStyle(categoryLabel),
		len(m.visible), len(m.all),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state != libraryStateBrowse && m.form != nil {
		title := "Edit Receipt"
		if m.editGroup && m.state == libraryStateEdit {
			title = "Edit Receipt Group"
		}

		if m.state == libraryStateDelete {
			title = "Delete Receipt"
		}

		details := ""
		if r := m.selected(); r != nil {
			details = fmt.Sprintf("Store: %s\nPurchased: %s", r.StoreName, FormatDate(r.PurchaseDate))
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, details, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

// Messages

type loadLibraryMsg struct {
	rows []*receipt.Receipt
	err  error
}

func (m LibraryModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		rows, err := m.client.Rows(ctx)

		return loadLibraryMsg{rows: rows, err: err}
	}
}

type librarySaveMsg struct {
	status string
	err    error
}

func (m LibraryModel) patch() receipt.Patch {
	p := receipt.Patch{
		BrandName:      new(strings.TrimSpace(m.fields.brand)),
		WarrantyPeriod: new(strings.TrimSpace(m.fields.warranty)),
	}

	if m.editGroup {
		return p
	}

	p.ProductDescription = new(strings.TrimSpace(m.fields.product))

	if amount, err := decimal.NewFromString(strings.TrimSpace(m.fields.amount)); err == nil {
		p.Amount = &amount
	}

	return p
}

func (m LibraryModel) saveCmd() tea.Cmd {
	r := m.selected()
	if r == nil {
		return nil
	}

	patch := m.patch()
	group := m.editGroup

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		if group {
			rows, err := m.client.UpdateGroup(ctx, r.ReceiptGroupID.UUID, patch)
			if err != nil {
				return librarySaveMsg{err: err}
			}

			return librarySaveMsg{status: fmt.Sprintf("Updated %d products", len(rows))}
		}

		if _, err := m.client.Update(ctx, r.ID, patch); err != nil {
			return librarySaveMsg{err: err}
		}

		return librarySaveMsg{status: "Receipt updated"}
	}
}

func (m LibraryModel) deleteCmd() tea.Cmd {
	r := m.selected()
	if r == nil {
		return nil
	}

	target := receipt.DeleteRow(r.ID)
	if r.ReceiptGroupID.Valid {
		target = receipt.DeleteGroup(r.ReceiptGroupID.UUID)
	}

	return func() tea.Msg {
		ctx, cancel := APICtx()
		defer cancel()

		if err := m.client.Delete(ctx, target); err != nil {
			return librarySaveMsg{err: err}
		}

		return librarySaveMsg{status: "Receipt deleted"}
	}
}
