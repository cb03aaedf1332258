package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/provider-ingest/internal/extract"
)

// ReadXLSX reads every sheet of a workbook as one table page, in sheet order.
func ReadXLSX(r io.Reader) ([]extract.TablePage, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pages []extract.TablePage
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		pages = append(pages, extract.TablePage{Page: i + 1, Rows: rows})
	}
	return pages, nil
}

// ReadCSV reads a CSV document as a single table page. Ragged rows are allowed.
func ReadCSV(r io.Reader) (extract.TablePage, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	page := extract.TablePage{Page: 1}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return page, fmt.Errorf("read csv: %w", err)
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

// RowsToObjects keys each data row by the header row. Header names are lowercased
// with blanks replaced by underscores; cells past the header width are ignored and
// missing cells are left out.
func RowsToObjects(rows [][]string) []map[string]any {
	if len(rows) < 2 {
		return nil
	}
	keys := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		keys[i] = strings.Join(strings.Fields(strings.ToLower(strings.TrimPrefix(h, "\ufeff"))), "_")
	}

	objs := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]any, len(keys))
		blank := true
		for i, k := range keys {
			if k == "" || i >= len(row) {
				continue
			}
			obj[k] = row[i]
			if strings.TrimSpace(row[i]) != "" {
				blank = false
			}
		}
		if !blank {
			objs = append(objs, obj)
		}
	}
	return objs
}
