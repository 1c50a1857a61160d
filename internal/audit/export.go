package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"chronos/internal/export"
	dErrors "chronos/pkg/domain-errors"
)

// ExportFile is a rendered log export ready to be sent as a download.
type ExportFile struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
}

// ExportLogs renders the filtered log in the requested format: "csv",
// "json" or "excel" (Excel 2003 XML).
func (r *Recorder) ExportLogs(ctx context.Context, f Filters, format string) (ExportFile, error) {
	page, err := r.List(ctx, f)
	if err != nil {
		return ExportFile{}, err
	}
	stamp := r.now().Format("2006-01-02")

	switch format {
	case "json":
		data, err := json.MarshalIndent(page.Logs, "", "  ")
		if err != nil {
			return ExportFile{}, dErrors.Wrap(err, dErrors.CodeInternal, "encoding log export")
		}
		return ExportFile{
			Data:     data,
			Filename: fmt.Sprintf("audit_log_%s.json", stamp),
			MIMEType: "application/json",
		}, nil

	case "csv":
		table := logTable(page.Logs)
		return ExportFile{
			Data:     []byte(export.CSV(table, export.CSVOptions{})),
			Filename: fmt.Sprintf("audit_log_%s.csv", stamp),
			MIMEType: "text/csv",
		}, nil

	case "excel":
		table := logTable(page.Logs)
		return ExportFile{
			Data:     []byte(export.ExcelXML(table, "Auditoría")),
			Filename: fmt.Sprintf("audit_log_%s.xls", stamp),
			MIMEType: "application/vnd.ms-excel",
		}, nil

	default:
		return ExportFile{}, dErrors.Newf(dErrors.CodeInvalidInput, "formato no soportado: %s", format)
	}
}

func logTable(logs []Entry) export.Table {
	t := export.Table{
		Title: "Bitácora de auditoría",
		Columns: []export.Column{
			{Header: "ID"}, {Header: "Fecha"}, {Header: "Usuario"}, {Header: "Email"},
			{Header: "Rol"}, {Header: "Acción"}, {Header: "Módulo"}, {Header: "Severidad"},
			{Header: "Descripción"}, {Header: "Entidad"}, {Header: "Banco"},
			{Header: "Monto", Align: export.AlignRight}, {Header: "IP"},
			{Header: "Dispositivo"}, {Header: "Exitoso"},
		},
	}
	for _, l := range logs {
		var entity, bank string
		var amount export.Value
		if l.Entity != nil {
			entity = l.Entity.Name
		}
		if l.Finance != nil {
			bank = l.Finance.AccountName
			amount = export.Money(l.Finance.Amount)
		}
		t.Rows = append(t.Rows, []export.Value{
			export.Text(string(l.ID)),
			export.Date(l.At),
			export.Text(l.Actor.Name),
			export.Text(l.Actor.Email),
			export.Text(l.Actor.RoleName),
			export.Text(string(l.Action)),
			export.Text(string(l.Module)),
			export.Text(string(l.Severity)),
			export.Text(l.Description),
			export.Text(entity),
			export.Text(bank),
			amount,
			export.Text(l.Device.IP),
			export.Text(l.Device.Device),
			export.Bool(l.Success),
		})
	}
	return t
}
