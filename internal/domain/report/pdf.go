package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/medlab/lims/internal/domain/order"
	"github.com/medlab/lims/internal/domain/patient"
)

type resultRow struct {
	TestName       string
	Value          string
	Unit           string
	ReferenceRange string
	Flags          string
}

type renderData struct {
	Order       *order.Order
	Patient     *patient.Patient
	Rows        []resultRow
	GeneratedAt time.Time
}

// renderPDF lays out a single-order lab report on A4.
func renderPDF(data *renderData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Lab Report "+data.Order.OrderNo, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Laboratory Report", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	years, months, _ := data.Patient.Age(data.GeneratedAt)

	pdf.SetFont("Helvetica", "", 10)
	left := [][2]string{
		{"Patient", data.Patient.FullName},
		{"MRN", data.Patient.MRN},
		{"Sex / Age", fmt.Sprintf("%s / %dy %dm", data.Patient.Sex, years, months)},
	}
	right := [][2]string{
		{"Order No", data.Order.OrderNo},
		{"Priority", data.Order.Priority},
		{"Generated", data.GeneratedAt.Format("2006-01-02 15:04")},
	}
	for i := range left {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(25, 6, left[i][0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(70, 6, left[i][1], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(25, 6, right[i][0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, right[i][1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Results table.
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(70, 8, "Test", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Result", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "Unit", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Reference Range", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "Flag", "1", 1, "C", true, 0, "")

	for _, row := range data.Rows {
		style := ""
		if row.Flags != "" && row.Flags != FlagNormalRendered {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(70, 7, row.TestName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, row.Value, "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, row.Unit, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, row.ReferenceRange, "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, row.Flags, "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This report was produced electronically and is valid without a signature.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FlagNormalRendered is the flag value that does not call for emphasis.
const FlagNormalRendered = "N"
