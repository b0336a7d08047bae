// Package feature turns company records into fixed-width numeric vectors and
// owns the Bundle that keeps training-time and inference-time encodings aligned.
package feature

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-scout/internal/model"
)

// EncodingVersion identifies the encoding rules in this package. It is part
// of the artifact schema version.
const EncodingVersion = "features/v2"

// ErrUnscaled is returned alongside a best-effort vector when the numeric
// subset could not be standardized. The vector is still aligned.
var ErrUnscaled = eris.New("feature: numeric columns left unscaled")

// Bundle is the ordered column list, its numeric subset, and the fitted scaler.
// Any vector handed to a model trained against a Bundle must come from that
// Bundle's Transform.
type Bundle struct {
	Columns []string `json:"columns"`
	Numeric []string `json:"numeric"`
	Scaler  *Scaler  `json:"scaler"`
	Version string   `json:"version"`

	once sync.Once
	pos  map[string]int
}

func (b *Bundle) positions() map[string]int {
	b.once.Do(func() {
		b.pos = make(map[string]int, len(b.Columns))
		for i, c := range b.Columns {
			b.pos[c] = i
		}
	})
	return b.pos
}

// Width is the number of expected columns.
func (b *Bundle) Width() int {
	return len(b.Columns)
}

// Validate reports whether a decoded bundle can produce aligned vectors: it
// has columns, its scaler matches the numeric subset, and every numeric
// column is one of the columns.
func (b *Bundle) Validate() error {
	if b.Width() == 0 {
		return eris.New("feature: bundle has no columns")
	}
	if b.Scaler == nil {
		return eris.New("feature: bundle has no scaler")
	}
	if b.Scaler.Width() != len(b.Numeric) || len(b.Scaler.Scale) != len(b.Scaler.Mean) {
		return eris.Errorf("feature: scaler fitted on %d columns, bundle declares %d", b.Scaler.Width(), len(b.Numeric))
	}
	seen := make(map[string]struct{}, len(b.Columns))
	for _, c := range b.Columns {
		if _, dup := seen[c]; dup {
			return eris.Errorf("feature: duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for _, name := range b.Numeric {
		if _, ok := seen[name]; !ok {
			return eris.Errorf("feature: numeric column %q not in bundle", name)
		}
	}
	return nil
}

// Build encodes the training records, derives the column list, fits the
// scaler on the numeric subset and returns the scaled matrix.
func Build(records []model.Company) (*Bundle, [][]float64, error) {
	if len(records) == 0 {
		return nil, nil, eris.New("feature: no records to build bundle from")
	}

	encs := make([]encoded, len(records))
	for i, r := range records {
		encs[i] = encode(r, false)
	}

	columns := append([]string(nil), NumericColumns...)
	for f, field := range CategoricalFields {
		var cats []string
		if buckets, ok := bucketFields[field]; ok {
			cats = bucketLabels(buckets)
		} else {
			seen := make(map[string]struct{})
			for _, e := range encs {
				if v := e.cats[f]; v != "" {
					seen[v] = struct{}{}
				}
			}
			for v := range seen {
				cats = append(cats, v)
			}
			sort.Strings(cats)
		}
		// drop-first
		for i := 1; i < len(cats); i++ {
			columns = append(columns, dummyColumn(field, cats[i]))
		}
	}

	b := &Bundle{
		Columns: columns,
		Numeric: append([]string(nil), NumericColumns...),
		Version: EncodingVersion,
	}

	matrix := make([][]float64, len(encs))
	for i, e := range encs {
		matrix[i] = b.align(e)
	}

	numCols := make([][]float64, len(b.Numeric))
	for j := range b.Numeric {
		col := make([]float64, len(matrix))
		for i := range matrix {
			col[i] = matrix[i][j]
		}
		numCols[j] = col
	}
	b.Scaler = FitScaler(numCols)

	for i := range matrix {
		if err := b.scale(matrix[i]); err != nil {
			return nil, nil, eris.Wrap(err, "feature: scale training matrix")
		}
	}
	return b, matrix, nil
}

// align reindexes an encoded record to exactly b.Columns. Missing columns
// stay zero and unknown categories are dropped.
func (b *Bundle) align(e encoded) []float64 {
	pos := b.positions()
	out := make([]float64, len(b.Columns))
	for name, v := range e.numeric {
		if j, ok := pos[name]; ok {
			out[j] = v
		}
	}
	for f, v := range e.cats {
		if v == "" {
			continue
		}
		if j, ok := pos[dummyColumn(CategoricalFields[f], v)]; ok {
			out[j] = 1
		}
	}
	return out
}

// scale standardizes the numeric subset of an aligned row in place. On error
// the row is left untouched.
func (b *Bundle) scale(row []float64) error {
	if b.Scaler.Width() != len(b.Numeric) {
		return eris.Errorf("feature: scaler fitted on %d columns, bundle declares %d", b.Scaler.Width(), len(b.Numeric))
	}
	pos := b.positions()
	idx := make([]int, len(b.Numeric))
	vals := make([]float64, len(b.Numeric))
	for k, name := range b.Numeric {
		j, ok := pos[name]
		if !ok {
			return eris.Errorf("feature: numeric column %q not in bundle", name)
		}
		idx[k] = j
		vals[k] = row[j]
	}
	if err := b.Scaler.Apply(vals); err != nil {
		return err
	}
	for k, j := range idx {
		row[j] = vals[k]
	}
	return nil
}

// Transform encodes one record for inference. The result always has exactly
// Width() entries. If scaling fails the unscaled aligned vector is returned
// together with an error wrapping ErrUnscaled.
func (b *Bundle) Transform(c model.Company) ([]float64, error) {
	row := b.align(encode(c, true))
	if err := b.scale(row); err != nil {
		return row, eris.Wrapf(ErrUnscaled, "feature: transform: %v", err)
	}
	return row, nil
}

// TransformAll encodes many records. The first scaling error is returned but
// every row is still produced.
func (b *Bundle) TransformAll(records []model.Company) ([][]float64, error) {
	out := make([][]float64, len(records))
	var firstErr error
	for i, r := range records {
		row, err := b.Transform(r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out[i] = row
	}
	return out, firstErr
}

// Encode is like Transform but keeps the record's own status instead of
// pinning it to Operating. Used to evaluate a bundle against labelled data.
func (b *Bundle) Encode(c model.Company) ([]float64, error) {
	row := b.align(encode(c, false))
	if err := b.scale(row); err != nil {
		return row, eris.Wrapf(ErrUnscaled, "feature: encode: %v", err)
	}
	return row, nil
}
