package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// ExcelizeWriter implements ExcelWriter on an in-memory workbook.
type ExcelizeWriter struct {
	file         *excelize.File
	headerStyle  int
	currentSheet string
	currentRow   int
}

func NewExcelizeWriter() ExcelWriter {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		style = 0
	}
	return &ExcelizeWriter{file: f, headerStyle: style}
}

// AddSheet starts a new sheet; the workbook's default sheet is reused for the first one.
func (w *ExcelizeWriter) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if len(columns) == 0 {
		return nil
	}

	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &header); err != nil {
		return err
	}

	if w.headerStyle != 0 {
		end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, w.headerStyle)
	}
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})

	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
