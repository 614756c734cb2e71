package view

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/smartreceipts/internal/warranty"
)

const apiTimeout = 10 * time.Second

// FormatAmount formats an optional amount with two decimals, or "-".
func FormatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}

	return d.Decimal.StringFixed(2)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// APICtx returns a context with a standard timeout for API calls.
func APICtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), apiTimeout)
}

var badgeColors = map[warranty.Status]lipgloss.Color{
	warranty.StatusExpired:      lipgloss.Color("196"),
	warranty.StatusExpiringSoon: lipgloss.Color("214"),
	warranty.StatusActive:       lipgloss.Color("46"),
}

// FormatBadge renders the warranty badge with its days left.
func FormatBadge(info warranty.Info) string {
	label := string(info.Badge)

	switch {
	case info.Expiry.Equal(warranty.LifetimeExpiry):
		label = "lifetime"
	case info.DaysLeft > 0:
		label = label + " (" + FormatDays(info.DaysLeft) + ")"
	}

	return lipgloss.NewStyle().Foreground(badgeColors[info.Badge]).Render(label)
}

func FormatDays(days int) string {
	if days == 1 {
		return "1 day"
	}

	return fmt.Sprintf("%d days", days)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func errorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(s)
}
