// Package report renders finished run summaries for export: an Excel
// workbook, a Define-XML 2.0 document and an HTML view of the same metadata.
package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Sheet names in the workbook, in order.
const (
	SheetSummary  = "Summary"
	SheetDatasets = "Datasets"
	SheetFindings = "Findings"
)

var (
	datasetHeader = []any{"Domain", "Filename", "Format", "Rows", "Columns"}
	findingHeader = []any{"ID", "Dataset", "Variable", "Severity", "Message", "Recommendation", "Reference"}
)

// WriteWorkbook writes summary as an .xlsx workbook to w.
func WriteWorkbook(w io.Writer, summary *core.RunSummary) error {
	f, err := BuildWorkbook(summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook returns the encoded workbook bytes.
func Workbook(summary *core.RunSummary) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, summary); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildWorkbook lays out the Summary, Datasets and Findings sheets. The
// caller closes the file.
func BuildWorkbook(summary *core.RunSummary) (*excelize.File, error) {
	if summary == nil {
		return nil, fmt.Errorf("run summary is required")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}

	steps := []func(*excelize.File, *core.RunSummary) error{
		writeSummarySheet,
		writeDatasetSheet,
		writeFindingSheet,
	}
	for _, step := range steps {
		if err := step(f, summary); err != nil {
			f.Close()
			return nil, fmt.Errorf("build workbook: %w", err)
		}
	}
	return f, nil
}

func writeSummarySheet(f *excelize.File, s *core.RunSummary) error {
	rows := [][]any{
		{"Run ID", s.ID},
		{"Standard", s.StandardID},
		{"Started", s.StartedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{"Completed", s.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{"Datasets", len(s.Datasets)},
		{"Findings", s.Summary.Total},
		{"Errors", s.Summary.Errors},
		{"Warnings", s.Summary.Warnings},
	}
	return writeRows(f, SheetSummary, rows)
}

func writeDatasetSheet(f *excelize.File, s *core.RunSummary) error {
	if _, err := f.NewSheet(SheetDatasets); err != nil {
		return err
	}
	rows := [][]any{datasetHeader}
	for _, d := range s.Datasets {
		rows = append(rows, []any{d.Domain, d.Name, d.Format, d.RowCount, d.ColumnCount})
	}
	return writeRows(f, SheetDatasets, rows)
}

func writeFindingSheet(f *excelize.File, s *core.RunSummary) error {
	if _, err := f.NewSheet(SheetFindings); err != nil {
		return err
	}
	rows := [][]any{findingHeader}
	for _, fd := range s.Findings {
		rows = append(rows, []any{
			fd.ID, fd.Domain, fd.Variable, string(fd.Severity),
			fd.Message, fd.Recommendation, fd.RuleReference,
		})
	}
	if err := writeRows(f, SheetFindings, rows); err != nil {
		return err
	}
	return f.SetColWidth(SheetFindings, "E", "G", 60)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
