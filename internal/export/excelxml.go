package export

import (
	"strconv"
	"strings"
)

// ExcelXML renders the table in the Excel 2003 SpreadsheetML dialect, which
// Excel opens directly. It is plain text, not the binary xlsx container.
func ExcelXML(t Table, sheetName string) string {
	if sheetName == "" {
		sheetName = "Reporte"
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<?mso-application progid="Excel.Sheet"?>` + "\n")
	b.WriteString(`<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"` + "\n")
	b.WriteString(`  xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">` + "\n")
	b.WriteString("<Styles>\n")
	b.WriteString(`  <Style ss:ID="Header"><Font ss:Bold="1" ss:Color="#FFFFFF"/><Interior ss:Color="#4F46E5" ss:Pattern="Solid"/></Style>` + "\n")
	b.WriteString(`  <Style ss:ID="Currency"><NumberFormat ss:Format="$#,##0.00"/></Style>` + "\n")
	b.WriteString(`  <Style ss:ID="Date"><NumberFormat ss:Format="dd/mm/yyyy"/></Style>` + "\n")
	b.WriteString("</Styles>\n")
	b.WriteString(`<Worksheet ss:Name="` + escapeXML(sheetName) + `">` + "\n")
	b.WriteString("<Table>\n")

	b.WriteString("<Row>\n")
	for _, col := range t.Columns {
		b.WriteString(`  <Cell ss:StyleID="Header"><Data ss:Type="String">` + escapeXML(col.Header) + "</Data></Cell>\n")
	}
	b.WriteString("</Row>\n")

	for _, row := range t.Rows {
		b.WriteString("<Row>\n")
		for _, v := range row {
			b.WriteString("  " + excelCell(v) + "\n")
		}
		b.WriteString("</Row>\n")
	}

	b.WriteString("</Table>\n")
	b.WriteString("</Worksheet>\n")
	b.WriteString("</Workbook>")
	return b.String()
}

func excelCell(v Value) string {
	switch v.Kind {
	case KindNumber, KindPercent:
		return `<Cell><Data ss:Type="Number">` + strconv.FormatFloat(v.Number, 'f', -1, 64) + "</Data></Cell>"
	case KindMoney:
		return `<Cell ss:StyleID="Currency"><Data ss:Type="Number">` + strconv.FormatFloat(v.Number, 'f', 2, 64) + "</Data></Cell>"
	case KindDate:
		return `<Cell ss:StyleID="Date"><Data ss:Type="String">` + escapeXML(v.Format()) + "</Data></Cell>"
	default:
		return `<Cell><Data ss:Type="String">` + escapeXML(v.Format()) + "</Data></Cell>"
	}
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
