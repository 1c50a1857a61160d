package export

import "strings"

// CSVOptions configure the CSV renderer. The zero value produces comma
// delimited, LF terminated output with a header row.
type CSVOptions struct {
	Delimiter  rune
	EOL        string
	SkipHeader bool
}

func (o CSVOptions) delimiter() string {
	if o.Delimiter == 0 {
		return ","
	}
	return string(o.Delimiter)
}

func (o CSVOptions) eol() string {
	if o.EOL == "" {
		return "\n"
	}
	return o.EOL
}

// CSV renders the table as delimiter-separated text. Values containing the
// delimiter, quotes or newlines are quoted with doubled inner quotes.
func CSV(t Table, opts CSVOptions) string {
	delim := opts.delimiter()

	escape := func(s string) string {
		if strings.Contains(s, delim) || strings.Contains(s, `"`) || strings.Contains(s, "\n") {
			return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
		}
		return s
	}

	var lines []string
	if !opts.SkipHeader {
		headers := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			headers[i] = escape(c.Header)
		}
		lines = append(lines, strings.Join(headers, delim))
	}

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = escape(v.Format())
		}
		lines = append(lines, strings.Join(cells, delim))
	}

	return strings.Join(lines, opts.eol())
}
