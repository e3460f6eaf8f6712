package extract

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// spreadsheetText renders a workbook as text: one "Sheet: <name>" header per
// sheet, rows tab-joined, sheets separated by a blank line.
func (e *Extractor) spreadsheetText(ctx context.Context, fileName string, data []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		slog.WarnContext(ctx, "spreadsheet parse failed, substituting placeholder",
			"file_name", fileName,
			"error", err)
		return placeholder(fileName, "could not parse spreadsheet")
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable sheet",
				"file_name", fileName,
				"sheet", name,
				"error", err)
			continue
		}

		var b strings.Builder
		b.WriteString("Sheet: " + name)
		for _, row := range rows {
			b.WriteString("\n")
			b.WriteString(strings.Join(row, "\t"))
		}
		sheets = append(sheets, b.String())
	}

	if len(sheets) == 0 {
		return placeholder(fileName, "spreadsheet has no readable sheets")
	}
	return strings.Join(sheets, "\n\n")
}
