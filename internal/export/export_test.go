package export_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronos/internal/export"
)

type ExportSuite struct {
	suite.Suite

	table export.Table
}

func TestExportSuite(t *testing.T) {
	suite.Run(t, new(ExportSuite))
}

func (s *ExportSuite) SetupTest() {
	s.table = export.Table{
		Title: "Movimientos",
		Columns: []export.Column{
			{Header: "Fecha"},
			{Header: "Concepto"},
			{Header: "Monto", Align: export.AlignRight},
			{Header: "Exitoso"},
		},
		Rows: [][]export.Value{
			{
				export.Date(time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)),
				export.Text("Pago, distribuidor \"Norte\""),
				export.Money(1500.5),
				export.Bool(true),
			},
			{
				export.Date(time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)),
				export.Text("Retiro"),
				export.Money(200),
				export.Bool(false),
			},
		},
	}
}

func (s *ExportSuite) TestValueFormat() {
	tests := []struct {
		name  string
		value export.Value
		want  string
	}{
		{"text", export.Text("hola"), "hola"},
		{"number trims zeros", export.Number(12.5), "12.5"},
		{"money two decimals", export.Money(1500.5), "$1500.50"},
		{"percent", export.Percent(12.345), "12.35%"},
		{"bool true", export.Bool(true), "Sí"},
		{"bool false", export.Bool(false), "No"},
		{"absent", export.Value{}, ""},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, tt.value.Format())
		})
	}
}

func (s *ExportSuite) TestDetect() {
	s.Equal(export.KindNumber, export.Detect(42).Kind)
	s.Equal(export.KindText, export.Detect("x").Kind)
	s.Equal(export.KindBool, export.Detect(true).Kind)
	s.Equal(export.KindDate, export.Detect(time.Now()).Kind)
	s.True(export.Detect(nil).IsAbsent())

	// Unknown shapes serialize to JSON text.
	v := export.Detect(map[string]any{"a": 1})
	s.Equal(export.KindText, v.Kind)
	s.Equal(`{"a":1}`, v.Text)
}

func (s *ExportSuite) TestValueEqual() {
	s.True(export.Number(1).Equal(export.Number(1)))
	s.False(export.Number(1).Equal(export.Money(1)))
	s.False(export.Text("a").Equal(export.Text("b")))
	s.True(export.Value{}.Equal(export.Value{}))
}

func (s *ExportSuite) TestCSVEscaping() {
	out := export.CSV(s.table, export.CSVOptions{})
	lines := strings.Split(out, "\n")
	s.Require().Len(lines, 3)
	s.Equal("Fecha,Concepto,Monto,Exitoso", lines[0])
	s.Contains(lines[1], `"Pago, distribuidor ""Norte"""`)
	s.Contains(lines[1], "$1500.50")
	s.Contains(lines[2], "No")
}

func (s *ExportSuite) TestCSVCustomDelimiterAndEOL() {
	out := export.CSV(s.table, export.CSVOptions{Delimiter: ';', EOL: "\r\n", SkipHeader: true})
	s.NotContains(out, "Fecha;")
	s.Contains(out, "\r\n")
	// Comma no longer needs quoting under a semicolon delimiter, but the
	// embedded quotes still do.
	s.Contains(out, `"Pago, distribuidor ""Norte"""`)
}

func (s *ExportSuite) TestExcelXMLStructure() {
	out := export.ExcelXML(s.table, "Hoja1")
	s.True(strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	s.Contains(out, `<?mso-application progid="Excel.Sheet"?>`)
	s.Contains(out, `<Worksheet ss:Name="Hoja1">`)
	s.Contains(out, `<Cell ss:StyleID="Currency"><Data ss:Type="Number">1500.50</Data></Cell>`)
	s.Contains(out, `&quot;Norte&quot;`)
	s.True(strings.HasSuffix(out, "</Workbook>"))
}

func (s *ExportSuite) TestHTMLDocument() {
	out := export.HTMLDocument(s.table, export.HTMLOptions{
		PageSize:    "a4",
		Orientation: "landscape",
		IncludeDate: true,
		GeneratedAt: time.Date(2026, time.March, 6, 8, 0, 0, 0, time.UTC),
	})
	s.Contains(out, "@page { size: a4 landscape; margin: 1cm; }")
	s.Contains(out, "<h1>Movimientos</h1>")
	s.Contains(out, "Generado: 06/03/2026 08:00:00")
	s.Contains(out, `<td style="text-align: right">$1500.50</td>`)
	s.Contains(out, "Total de registros: 2")
	s.Contains(out, "&#34;Norte&#34;")
}

func (s *ExportSuite) TestFixedWidthLayout() {
	out := export.FixedWidth(s.table, time.Date(2026, time.March, 6, 8, 0, 0, 0, time.UTC))
	lines := strings.Split(out, "\n")
	s.Equal("REPORTE: Movimientos", lines[0])

	var header, sep string
	for i, l := range lines {
		if strings.HasPrefix(l, "Fecha") {
			header = l
			sep = lines[i+1]
			break
		}
	}
	s.Require().NotEmpty(header)
	s.Contains(header, " | ")
	s.Contains(sep, "-+-")
	s.Contains(out, "Total de registros: 2")
}
