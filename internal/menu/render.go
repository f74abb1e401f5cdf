package menu

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Row is one line of a rendered menu.
type Row struct {
	Label     string
	Tooltip   string
	Target    string
	Header    bool
	Separator bool
	Attention bool
}

// ItemLabel formats item for display at now. Times are microseconds since the epoch.
func ItemLabel(item Item, now time.Time) string {
	label := item.Label
	if item.Count > 0 {
		label = fmt.Sprintf("%s (%d)", label, item.Count)
	}
	if item.Time > 0 {
		label += " · " + humanize.RelTime(time.UnixMicro(item.Time), now, "ago", "from now")
	}
	return label
}

// ActionName returns the exported action name behind a menu target.
func ActionName(target string) string {
	return strings.TrimPrefix(target, TargetPrefix)
}

// PlaceholderRows is shown while nothing is pending.
func PlaceholderRows() []Row {
	return []Row{{Label: "No new messages", Header: true}}
}

// Rows flattens sections into display rows with separators between sections.
func Rows(sections []Section, now time.Time) []Row {
	if len(sections) == 0 {
		return PlaceholderRows()
	}
	var rows []Row
	for i, section := range sections {
		if i > 0 {
			rows = append(rows, Row{Separator: true})
		}
		if section.Label != "" {
			rows = append(rows, Row{Label: section.Label, Header: true})
		}
		for _, item := range section.Items {
			rows = append(rows, Row{
				Label:     ItemLabel(item, now),
				Tooltip:   item.Detail,
				Target:    item.Target,
				Attention: item.DrawsAttention,
			})
		}
	}
	return rows
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	attentionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5A50A"))
	detailStyle    = lipgloss.NewStyle().Faint(true)
	targetStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B8B8B"))
)

// RenderText renders sections for a terminal, one row per line.
func RenderText(sections []Section, now time.Time) string {
	var b strings.Builder
	for _, row := range Rows(sections, now) {
		switch {
		case row.Separator:
			b.WriteString("────────")
		case row.Header:
			b.WriteString(headerStyle.Render(row.Label))
		default:
			label := row.Label
			if row.Attention {
				label = attentionStyle.Render("● " + label)
			} else {
				label = "  " + label
			}
			b.WriteString(label)
			if row.Target != "" {
				b.WriteString("  " + targetStyle.Render(ActionName(row.Target)))
			}
			if row.Tooltip != "" {
				b.WriteString("\n    " + detailStyle.Render(row.Tooltip))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
