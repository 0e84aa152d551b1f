package tui

import (
	"fmt"
	"strings"

	"github.com/teller-cli/teller/internal/bankapi"
)

// Inflow decides transaction direction from the free-text type label. The
// backend does not guarantee a closed set; "credit" and "deposit" are the
// only inflow keywords observed, and anything else renders as an outflow.
func Inflow(txType string) bool {
	t := strings.ToLower(txType)
	return strings.Contains(t, "credit") || strings.Contains(t, "deposit")
}

// FormatAmount renders a signed dollar amount from the type label, e.g.
// "-$42.50" for a debit and "+$100.00" for a credit.
func FormatAmount(amount float64, txType string) string {
	sign := "-"
	if Inflow(txType) {
		sign = "+"
	}
	if amount < 0 {
		amount = -amount
	}
	return sign + "$" + formatMoney(amount)
}

// MaskCard hides everything but the last four digits.
func MaskCard(number string) string {
	if len(number) < 4 {
		return number
	}
	return "**** **** **** " + number[len(number)-4:]
}

// formatMoney renders a non-negative amount with thousands separators and
// two decimals.
func formatMoney(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}

func renderBalance(balance float64, width int) string {
	body := fmt.Sprintf("Account Balance\n$%s\nAvailable Balance", formatMoney(balance))
	return balanceStyle.Width(min(width, 40)).Render(body)
}

func renderCards(cards []bankapi.Card, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your Cards (%d)\n", len(cards))
	for i, card := range cards {
		status := statusNeutralStyle
		switch strings.ToLower(card.Status) {
		case "active":
			status = statusActiveStyle
		case "blocked":
			status = statusBlockedStyle
		}
		line := fmt.Sprintf("%s  %s  %s", card.CardType, MaskCard(card.CardNumber), status.Render(card.Status))
		if card.ExpiryDate != "" {
			line += dimStyle.Render("  expires " + card.ExpiryDate)
		}
		b.WriteString(line)
		if i < len(cards)-1 {
			b.WriteByte('\n')
		}
	}
	return widgetStyle.Width(min(width, 60)).Render(b.String())
}

func renderTransactions(txs []bankapi.Transaction, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent Transactions (%d)\n", len(txs))
	for i, tx := range txs {
		amount := FormatAmount(tx.Amount, tx.Type)
		style := outflowStyle
		if Inflow(tx.Type) {
			style = inflowStyle
		}
		fmt.Fprintf(&b, "%-10s  %-28s  %s", tx.Date, truncateCell(tx.Description, 28), style.Render(amount))
		b.WriteString(dimStyle.Render("  " + tx.Type))
		if i < len(txs)-1 {
			b.WriteByte('\n')
		}
	}
	return widgetStyle.Width(min(width, 72)).Render(b.String())
}

func truncateCell(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
