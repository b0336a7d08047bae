// Package dataset holds the in-memory company table together with the
// precomputed score columns, and the loaders that produce it.
package dataset

import (
	"sync"

	"github.com/sells-group/deal-scout/internal/model"
)

// Columns is the precomputed block kept alongside each record.
type Columns struct {
	Score          float64         `json:"attractiveness_score"`
	Tier           model.Tier      `json:"investment_tier"`
	TierNorm       string          `json:"investment_tier_norm"`
	Recommendation string          `json:"recommendation"`
	RiskLevel      model.RiskLevel `json:"risk_level"`
}

// Empty reports whether no precompute has written this row yet.
func (c Columns) Empty() bool {
	return c.Tier == ""
}

// ColumnsFromResult extracts the persisted columns of a scored result.
func ColumnsFromResult(r model.ScoredResult) Columns {
	return Columns{
		Score:          r.Score,
		Tier:           r.Tier,
		TierNorm:       r.TierKey,
		Recommendation: r.Recommendation,
		RiskLevel:      r.RiskLevel,
	}
}

// Dataset is an ordered table of companies. Records are read-only after
// construction; the precomputed columns are guarded by mu.
type Dataset struct {
	records     []model.Company
	columnCount int
	index       map[string]int

	mu   sync.RWMutex
	cols []Columns
}

// New builds a dataset over records. columnCount is the width of the source
// schema and only feeds the fingerprint.
func New(records []model.Company, columnCount int) *Dataset {
	ds := &Dataset{
		records:     records,
		columnCount: columnCount,
		index:       make(map[string]int, len(records)),
		cols:        make([]Columns, len(records)),
	}
	for i, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := ds.index[r.ID]; !dup {
			ds.index[r.ID] = i
		}
	}
	return ds
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.records) }

// ColumnCount returns the source schema width.
func (d *Dataset) ColumnCount() int { return d.columnCount }

// Records returns the underlying records. Callers must not modify them.
func (d *Dataset) Records() []model.Company { return d.records }

// At returns the i-th record.
func (d *Dataset) At(i int) model.Company { return d.records[i] }

// Lookup returns the row index of id.
func (d *Dataset) Lookup(id string) (int, bool) {
	i, ok := d.index[id]
	return i, ok
}

// Get returns the record for id.
func (d *Dataset) Get(id string) (model.Company, bool) {
	i, ok := d.index[id]
	if !ok {
		return model.Company{}, false
	}
	return d.records[i], true
}

// Columns returns the precomputed columns of row i.
func (d *Dataset) Columns(i int) Columns {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cols[i]
}

// SetColumns writes the precomputed columns of row i.
func (d *Dataset) SetColumns(i int, c Columns) {
	d.mu.Lock()
	d.cols[i] = c
	d.mu.Unlock()
}

// Snapshot copies the whole precomputed column table.
func (d *Dataset) Snapshot() []Columns {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Columns, len(d.cols))
	copy(out, d.cols)
	return out
}

// Labels returns the success labels in row order.
func (d *Dataset) Labels() []int {
	y := make([]int, len(d.records))
	for i, r := range d.records {
		y[i] = r.IsSuccessful
	}
	return y
}
