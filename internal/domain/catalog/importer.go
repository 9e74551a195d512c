package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/medlab/lims/internal/platform/db"
)

// Importer loads master catalog data from a single Excel workbook. The
// workbook carries four sheets: Parameters, Tests, Test_Parameters and
// Reference_Ranges. Rows are upserted by code so the import can be re-run
// against a newer workbook without duplicating data.
type Importer struct {
	repo Repository
	pool *pgxpool.Pool
}

func NewImporter(repo Repository, pool *pgxpool.Pool) *Importer {
	return &Importer{repo: repo, pool: pool}
}

// ImportSummary reports how many rows each sheet contributed.
type ImportSummary struct {
	Parameters      int
	Tests           int
	TestParameters  int
	ReferenceRanges int
	Skipped         int
}

// Import reads the workbook at path and upserts its contents inside a
// single transaction. A failure on any row rolls back the whole import.
func (i *Importer) Import(ctx context.Context, path string) (*ImportSummary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	summary := &ImportSummary{}

	run := func(ctx context.Context) error {
		if err := i.importParameters(ctx, f, summary); err != nil {
			return err
		}
		if err := i.importTests(ctx, f, summary); err != nil {
			return err
		}
		if err := i.importTestParameters(ctx, f, summary); err != nil {
			return err
		}
		return i.importReferenceRanges(ctx, f, summary)
	}

	if i.pool == nil {
		err = run(ctx)
	} else {
		err = db.WithTx(ctx, i.pool, run)
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (i *Importer) importParameters(ctx context.Context, f *excelize.File, summary *ImportSummary) error {
	rows, cols, err := sheetRows(f, "Parameters")
	if err != nil {
		return err
	}

	for _, row := range rows {
		code := cell(row, cols, "Parameter_Code")
		if code == "" {
			summary.Skipped++
			continue
		}

		p := &Parameter{
			Code:          code,
			Name:          cell(row, cols, "Parameter_Name"),
			Unit:          cell(row, cols, "Default_Unit"),
			DataType:      defaultStr(cell(row, cols, "Data_Type"), "Numeric"),
			DecimalPlaces: parseInt(cell(row, cols, "Decimal_Places"), 0),
			Active:        parseBool(cell(row, cols, "Active"), true),
		}
		if err := i.repo.UpsertParameter(ctx, p); err != nil {
			return fmt.Errorf("parameter %s: %w", code, err)
		}
		summary.Parameters++
	}
	return nil
}

func (i *Importer) importTests(ctx context.Context, f *excelize.File, summary *ImportSummary) error {
	rows, cols, err := sheetRows(f, "Tests")
	if err != nil {
		return err
	}

	for _, row := range rows {
		code := cell(row, cols, "Test_Code")
		if code == "" {
			summary.Skipped++
			continue
		}

		tat := parseInt(cell(row, cols, "Default_TAT_Minutes"), 0)
		t := &LabTest{
			Code:                code,
			Name:                cell(row, cols, "Test_Name"),
			Description:         cell(row, cols, "Description"),
			Category:            cell(row, cols, "Department"),
			SampleType:          cell(row, cols, "Specimen_Type"),
			Price:               parseFloat(cell(row, cols, "Default_Charge"), 0),
			TurnaroundTimeHours: (tat + 59) / 60,
			Active:              parseBool(cell(row, cols, "Active"), true),
		}
		if err := i.repo.UpsertTest(ctx, t); err != nil {
			return fmt.Errorf("test %s: %w", code, err)
		}
		summary.Tests++
	}
	return nil
}

func (i *Importer) importTestParameters(ctx context.Context, f *excelize.File, summary *ImportSummary) error {
	rows, cols, err := sheetRows(f, "Test_Parameters")
	if err != nil {
		return err
	}

	for _, row := range rows {
		testCode := cell(row, cols, "Test_Code")
		paramCode := cell(row, cols, "Parameter_Code")
		if testCode == "" || paramCode == "" {
			summary.Skipped++
			continue
		}

		test, err := i.repo.GetTestByCode(ctx, testCode)
		if err != nil {
			log.Warn().Str("test_code", testCode).Msg("test not found, skipping mapping")
			summary.Skipped++
			continue
		}
		param, err := i.repo.GetParameterByCode(ctx, paramCode)
		if err != nil {
			log.Warn().Str("parameter_code", paramCode).Msg("parameter not found, skipping mapping")
			summary.Skipped++
			continue
		}

		tp := &TestParameter{
			TestID:       test.ID,
			ParameterID:  param.ID,
			DisplayOrder: parseInt(cell(row, cols, "Display_Order"), 0),
		}
		if err := i.repo.LinkTestParameter(ctx, tp); err != nil {
			return fmt.Errorf("test parameter %s/%s: %w", testCode, paramCode, err)
		}
		summary.TestParameters++
	}
	return nil
}

func (i *Importer) importReferenceRanges(ctx context.Context, f *excelize.File, summary *ImportSummary) error {
	rows, cols, err := sheetRows(f, "Reference_Ranges")
	if err != nil {
		return err
	}

	for _, row := range rows {
		paramCode := cell(row, cols, "Parameter_Code")
		if paramCode == "" {
			summary.Skipped++
			continue
		}

		param, err := i.repo.GetParameterByCode(ctx, paramCode)
		if err != nil {
			log.Warn().Str("parameter_code", paramCode).Msg("parameter not found, skipping reference range")
			summary.Skipped++
			continue
		}

		rr := &ReferenceRange{
			ParameterID:  param.ID,
			Sex:          defaultStr(cell(row, cols, "Sex"), "All"),
			AgeMin:       parseInt(cell(row, cols, "Age_Min"), 0),
			AgeMax:       parseInt(cell(row, cols, "Age_Max"), 999),
			Unit:         cell(row, cols, "Unit"),
			NormalLow:    parseFloatPtr(cell(row, cols, "Normal_Low")),
			NormalHigh:   parseFloatPtr(cell(row, cols, "Normal_High")),
			CriticalLow:  parseFloatPtr(cell(row, cols, "Critical_Low")),
			CriticalHigh: parseFloatPtr(cell(row, cols, "Critical_High")),
		}
		if err := i.repo.UpsertReferenceRange(ctx, rr); err != nil {
			return fmt.Errorf("reference range %s: %w", paramCode, err)
		}
		summary.ReferenceRanges++
	}
	return nil
}

// sheetRows returns the data rows of a sheet plus a header-name to column
// index map. The first row is the header.
func sheetRows(f *excelize.File, sheet string) ([][]string, map[string]int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, map[string]int{}, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for idx, name := range rows[0] {
		cols[strings.TrimSpace(name)] = idx
	}
	return rows[1:], cols, nil
}

func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// Excel often stores integers as floats.
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return def
		}
		return int(f)
	}
	return n
}

func parseFloat(v string, def float64) float64 {
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func parseFloatPtr(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "yes", "true", "1", "y":
		return true
	case "no", "false", "0", "n":
		return false
	}
	return def
}
