package export

import (
	"fmt"
	"strings"
	"time"
)

const minColumnWidth = 10

// FixedWidth renders the table as a plain-text report with padded columns,
// the terminal-friendly format behind the "txt" export option.
func FixedWidth(t Table, generatedAt time.Time) string {
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = max(len([]rune(col.Header)), minColumnWidth)
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			widths[i] = max(widths[i], len([]rune(v.Format())))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "REPORTE: %s\n", t.Title)
	}
	fmt.Fprintf(&b, "Generado: %s\n", generatedAt.Format("02/01/2006 15:04:05"))
	b.WriteString(strings.Repeat("═", 80) + "\n\n")

	headers := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = pad(col.Header, widths[i])
	}
	b.WriteString(strings.Join(headers, " | ") + "\n")

	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	b.WriteString(strings.Join(seps, "-+-") + "\n")

	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			var s string
			if i < len(row) {
				s = row[i].Format()
			}
			cells[i] = pad(s, widths[i])
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}

	b.WriteString("\n" + strings.Repeat("═", 80) + "\n")
	fmt.Fprintf(&b, "Total de registros: %d\n", len(t.Rows))
	return b.String()
}

// pad truncates or right-pads s to exactly width runes.
func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) > width {
		runes = runes[:width]
	}
	return string(runes) + strings.Repeat(" ", width-len(runes))
}
