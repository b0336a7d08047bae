package dataset

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/deal-scout/internal/model"
)

// sheetReader feeds spreadsheet rows to a csvutil decoder.
type sheetReader struct {
	rows []*xlsx.Row
	next int
}

func (r *sheetReader) Read() ([]string, error) {
	for r.next < len(r.rows) {
		row := r.rows[r.next]
		r.next++
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		return cells, nil
	}
	return nil, io.EOF
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadXLSX decodes companies from a workbook. The sheet named sheet is used
// when set, otherwise the first one. Its first non-blank row is the header
// and the columns follow the same rules as ReadCSV.
func ReadXLSX(path, sheet string) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	return readWorkbook(f, sheet)
}

// ReadXLSXBytes is ReadXLSX over an in-memory workbook.
func ReadXLSXBytes(data []byte, sheet string) (*Dataset, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	return readWorkbook(f, sheet)
}

func readWorkbook(f *xlsx.File, sheet string) (*Dataset, error) {
	var s *xlsx.Sheet
	switch {
	case sheet != "":
		var ok bool
		if s, ok = f.Sheet[sheet]; !ok {
			return nil, eris.Errorf("dataset: sheet %q not found", sheet)
		}
	case len(f.Sheets) == 0:
		return nil, eris.New("dataset: workbook has no sheets")
	default:
		s = f.Sheets[0]
	}

	dec, err := csvutil.NewDecoder(&sheetReader{rows: s.Rows})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read xlsx header")
	}
	var records []model.Company
	for {
		var row rawRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "dataset: decode sheet row %d", len(records)+1)
		}
		records = append(records, row.company())
	}
	if len(records) == 0 {
		return nil, eris.New("dataset: sheet has no rows")
	}
	return New(records, len(dec.Header())), nil
}

// XLSXLoader reads a dataset from a workbook on disk.
type XLSXLoader struct {
	Path  string
	Sheet string
}

// Load implements Loader.
func (l XLSXLoader) Load(_ context.Context) (*Dataset, error) {
	ds, err := ReadXLSX(l.Path, l.Sheet)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", l.Path)
	}
	return ds, nil
}

// LoaderFor picks the loader for a dataset location: an http(s) URL is
// downloaded, a .xlsx path is read as a workbook and anything else as CSV.
func LoaderFor(location string) Loader {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return HTTPLoader{URL: location}
	case filepath.Ext(lower) == ".xlsx":
		return XLSXLoader{Path: location}
	default:
		return CSVLoader{Path: location}
	}
}
