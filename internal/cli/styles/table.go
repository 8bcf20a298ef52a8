package styles

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/ealain/internal/domain/entity"
)

// NewStyledTable creates a themed table model.
func NewStyledTable(theme *Theme, columns []table.Column, rows []table.Row, width, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(height),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border).
		BorderBottom(true).
		Foreground(theme.Accent).
		Bold(true)
	// Static listings have no cursor.
	s.Selected = s.Cell.Foreground(theme.Text)
	s.Cell = s.Cell.
		Foreground(theme.Text)

	t.SetStyles(s)
	return t
}

// PoolTableColumns returns columns for the per-partition summary.
func PoolTableColumns() []table.Column {
	return []table.Column{
		{Title: "Partition", Width: 28},
		{Title: "Images", Width: 8},
		{Title: "Newest", Width: 20},
	}
}

// ImageTableColumns returns columns for the image listing of one partition.
func ImageTableColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 48},
		{Title: "Created", Width: 20},
	}
}

// PoolRow summarises one partition.
func PoolRow(p entity.Partition, entries []entity.CachedImageEntry) table.Row {
	newest := "-"
	if n := len(entries); n > 0 {
		newest = formatTime(entries[n-1].CreatedAt)
	}
	return table.Row{p.String(), strconv.Itoa(len(entries)), newest}
}

// ImageRow describes one cached image.
func ImageRow(e entity.CachedImageEntry) table.Row {
	return table.Row{filepath.Base(e.Path), formatTime(e.CreatedAt)}
}

// RenderTable renders rows without any interaction.
func RenderTable(theme *Theme, columns []table.Column, rows []table.Row) string {
	width := 0
	for _, c := range columns {
		width += c.Width + 2
	}
	return NewStyledTable(theme, columns, rows, width, len(rows)+1).View()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
