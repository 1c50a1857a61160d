package export

// Align controls cell alignment where the output format supports it.
type Align string

const (
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
	AlignCenter Align = "center"
)

// Column describes one report column.
type Column struct {
	Header string `json:"header"`
	Align  Align  `json:"align,omitempty"`
}

// Table is the format-independent report model every renderer consumes.
type Table struct {
	Title    string    `json:"title,omitempty"`
	Subtitle string    `json:"subtitle,omitempty"`
	Footer   string    `json:"footer,omitempty"`
	Columns  []Column  `json:"columns"`
	Rows     [][]Value `json:"rows"`
}
