package tui

import (
	"fmt"
	"strings"

	"rsi-lens/internal/domain"
	"rsi-lens/internal/export"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	accentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeModeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	modeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	detailStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	zoneStyles = map[domain.Zone]lipgloss.Style{
		domain.ZoneOverbought: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		domain.ZoneOversold:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		domain.ZoneNeutral:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Stock Technical Analysis"))
	if m.opts.Username != "" {
		b.WriteString(labelStyle.Render("  " + m.opts.Username))
	}
	b.WriteString("\n\n")

	b.WriteString(m.modeTabs())
	b.WriteString("\n\n")

	b.WriteString(m.inputs[inputTicker].View())
	b.WriteString("\n")
	if m.mode == ModeHistorical {
		b.WriteString(m.inputs[inputStart].View())
		b.WriteString("\n")
		b.WriteString(m.inputs[inputEnd].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading...\n")
	case m.errMsg != "":
		b.WriteString(m.errorView())
	case m.live != nil:
		b.WriteString(liveView(m.live))
	case m.series != nil:
		b.WriteString(historicalView(m.series, m.opts.DisplayCount))
	}

	if m.status != "" {
		b.WriteString("\n" + labelStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) modeTabs() string {
	tabs := make([]string, 0, 2)
	for _, mode := range []Mode{ModeLive, ModeHistorical} {
		style := modeStyle
		if mode == m.mode {
			style = activeModeStyle
		}
		tabs = append(tabs, style.Render(mode.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) errorView() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("Error") + "\n")
	b.WriteString(m.errMsg + "\n")
	if m.errDetails != "" {
		if m.showDetails {
			b.WriteString(labelStyle.Render("Error Details") + "\n")
			b.WriteString(detailStyle.Render(m.errDetails) + "\n")
		} else {
			b.WriteString(labelStyle.Render("Error Details (ctrl+d to expand)") + "\n")
		}
	}
	return b.String()
}

func liveView(r *domain.LiveRSIResult) string {
	zone := domain.ClassifyRSI(r.RSI)
	var b strings.Builder
	b.WriteString(titleStyle.Render("RSI Analysis for "+r.Symbol) + "\n")
	fmt.Fprintf(&b, "RSI Value: %s\n", export.FormatRSI(r.RSI))
	fmt.Fprintf(&b, "Last Updated: %s\n", export.FormatDisplayDate(r.Timestamp))
	fmt.Fprintf(&b, "Zone: %s\n", zoneStyles[zone].Render(string(zone)))
	return b.String()
}

func historicalView(s *domain.RSISeries, displayCount int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Historical RSI for "+s.Symbol) + "\n")
	if len(s.Points) == 0 {
		b.WriteString("No RSI data in the selected range\n")
		return b.String()
	}

	visible := export.Visible(s.Points, displayCount)
	fmt.Fprintf(&b, "%s  %s\n", headerStyle.Render(fmt.Sprintf("%-12s", "Date")), headerStyle.Render("RSI Value"))
	for _, p := range visible {
		fmt.Fprintf(&b, "%-12s  %s\n", export.DisplayDate(p.Date), export.FormatRSI(p.RSI))
	}
	b.WriteString(labelStyle.Render(export.Summary(len(visible), len(s.Points))) + "\n")
	if s.Skipped > 0 {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%d non-numeric entries skipped", s.Skipped)) + "\n")
	}
	return b.String()
}

func (m Model) help() string {
	parts := []string{"enter: submit", "tab: switch mode"}
	if m.mode == ModeHistorical {
		parts = append(parts, "up/down: move", "ctrl+s: export csv")
	}
	if m.errDetails != "" {
		parts = append(parts, "ctrl+d: details")
	}
	parts = append(parts, "esc: quit")
	return strings.Join(parts, " • ")
}
