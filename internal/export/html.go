package export

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// HTMLOptions configure the printable document renderer.
type HTMLOptions struct {
	PageSize    string // letter, legal, a4
	Orientation string // portrait, landscape
	IncludeDate bool
	GeneratedAt time.Time
}

// HTMLDocument renders the table as a self-contained HTML page styled for
// print-to-PDF. No external assets; the caller serves or saves it as is.
func HTMLDocument(t Table, opts HTMLOptions) string {
	if opts.PageSize == "" {
		opts.PageSize = "letter"
	}
	if opts.Orientation == "" {
		opts.Orientation = "portrait"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`  <meta charset="UTF-8">` + "\n")
	b.WriteString("  <style>\n")
	fmt.Fprintf(&b, "    @page { size: %s %s; margin: 1cm; }\n", opts.PageSize, opts.Orientation)
	b.WriteString("    body { font-family: Arial, sans-serif; font-size: 10px; }\n")
	b.WriteString("    .header { text-align: center; margin-bottom: 20px; }\n")
	b.WriteString("    .header h1 { color: #4F46E5; margin: 0; }\n")
	b.WriteString("    .header h2 { color: #6B7280; margin: 5px 0; font-weight: normal; }\n")
	b.WriteString("    .fecha { text-align: right; color: #9CA3AF; font-size: 9px; }\n")
	b.WriteString("    table { width: 100%; border-collapse: collapse; margin-top: 10px; }\n")
	b.WriteString("    th { background: #4F46E5; color: white; padding: 8px; text-align: left; }\n")
	b.WriteString("    td { padding: 6px 8px; border-bottom: 1px solid #E5E7EB; }\n")
	b.WriteString("    tr:nth-child(even) { background: #F9FAFB; }\n")
	b.WriteString("    .footer { text-align: center; margin-top: 20px; color: #9CA3AF; font-size: 9px; }\n")
	b.WriteString("  </style>\n</head>\n<body>\n")

	b.WriteString(`  <div class="header">` + "\n")
	if t.Title != "" {
		b.WriteString("    <h1>" + html.EscapeString(t.Title) + "</h1>\n")
	}
	if t.Subtitle != "" {
		b.WriteString("    <h2>" + html.EscapeString(t.Subtitle) + "</h2>\n")
	}
	b.WriteString("  </div>\n")

	if opts.IncludeDate {
		at := opts.GeneratedAt
		if at.IsZero() {
			at = time.Now()
		}
		b.WriteString(`  <div class="fecha">Generado: ` + at.Format("02/01/2006 15:04:05") + "</div>\n")
	}

	b.WriteString("  <table>\n    <thead>\n      <tr>\n")
	for _, col := range t.Columns {
		b.WriteString("        <th>" + html.EscapeString(col.Header) + "</th>\n")
	}
	b.WriteString("      </tr>\n    </thead>\n    <tbody>\n")

	for _, row := range t.Rows {
		b.WriteString("      <tr>\n")
		for i, v := range row {
			align := AlignLeft
			if i < len(t.Columns) && t.Columns[i].Align != "" {
				align = t.Columns[i].Align
			}
			fmt.Fprintf(&b, `        <td style="text-align: %s">%s</td>`+"\n", align, html.EscapeString(v.Format()))
		}
		b.WriteString("      </tr>\n")
	}

	b.WriteString("    </tbody>\n  </table>\n")
	b.WriteString(`  <div class="footer">` + "\n")
	if t.Footer != "" {
		b.WriteString("    " + html.EscapeString(t.Footer) + "<br>\n")
	}
	fmt.Fprintf(&b, "    Total de registros: %d\n", len(t.Rows))
	b.WriteString("  </div>\n</body>\n</html>")
	return b.String()
}
