package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/dataset"
	"github.com/sells-group/deal-scout/internal/model"
)

// ResultRow is one persisted precompute row.
type ResultRow struct {
	CompanyID string `json:"company_id"`
	dataset.Columns
}

type resultTable struct {
	Fingerprint   string      `json:"fingerprint"`
	Generation    string      `json:"generation"`
	SchemaVersion string      `json:"schema_version"`
	Rows          []ResultRow `json:"rows"`
}

type analysisMap struct {
	Fingerprint   string                        `json:"fingerprint"`
	Generation    string                        `json:"generation"`
	SchemaVersion string                        `json:"schema_version"`
	Results       map[string]model.ScoredResult `json:"results"`
}

func (m *Manager) tablePath(fp string) string {
	return filepath.Join(m.dir, fmt.Sprintf("precompute_%s.json", fp))
}

func (m *Manager) analysisPath(fp string) string {
	return filepath.Join(m.dir, fmt.Sprintf("analysis_%s.json", fp))
}

// SaveResults persists the precompute columns and the id→result map for fp,
// scored by the set generation gen. The table is written last and marks the
// pair as complete.
func (m *Manager) SaveResults(fp, gen string, rows []ResultRow, results map[string]model.ScoredResult) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return eris.Wrap(err, "artifact: create cache dir")
	}
	if err := os.Remove(m.tablePath(fp)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "artifact: remove stale precompute table")
	}

	analysis, err := json.Marshal(analysisMap{Fingerprint: fp, Generation: gen, SchemaVersion: SchemaVersion, Results: results})
	if err != nil {
		return eris.Wrap(err, "artifact: encode analysis map")
	}
	if err := writeAtomic(m.analysisPath(fp), analysis); err != nil {
		return err
	}

	table, err := json.Marshal(resultTable{Fingerprint: fp, Generation: gen, SchemaVersion: SchemaVersion, Rows: rows})
	if err != nil {
		return eris.Wrap(err, "artifact: encode precompute table")
	}
	return writeAtomic(m.tablePath(fp), table)
}

// LoadResults reads what SaveResults wrote for fp and gen. A missing, stale
// or corrupt file is a miss, as is one scored by another set generation.
func (m *Manager) LoadResults(fp, gen string) ([]ResultRow, map[string]model.ScoredResult, bool) {
	rows, results, err := m.loadResults(fp, gen)
	if err != nil {
		if !os.IsNotExist(eris.Cause(err)) {
			zap.L().Warn("artifact: ignoring persisted results", zap.String("fingerprint", fp), zap.Error(err))
		}
		return nil, nil, false
	}
	return rows, results, true
}

func (m *Manager) loadResults(fp, gen string) ([]ResultRow, map[string]model.ScoredResult, error) {
	raw, err := os.ReadFile(m.tablePath(fp))
	if err != nil {
		return nil, nil, err
	}
	var table resultTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, nil, eris.Wrap(err, "artifact: decode precompute table")
	}
	if table.Fingerprint != fp || table.SchemaVersion != SchemaVersion {
		return nil, nil, eris.Wrap(errStale, "artifact: precompute table")
	}
	if table.Generation != gen {
		return nil, nil, eris.Wrapf(errStale, "artifact: precompute table scored by %q, live set is %q", table.Generation, gen)
	}

	raw, err = os.ReadFile(m.analysisPath(fp))
	if err != nil {
		return nil, nil, eris.Wrap(err, "artifact: read analysis map")
	}
	var analysis analysisMap
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, nil, eris.Wrap(err, "artifact: decode analysis map")
	}
	if analysis.SchemaVersion != SchemaVersion || analysis.Generation != gen {
		return nil, nil, eris.Wrap(errStale, "artifact: analysis map")
	}
	if analysis.Results == nil {
		analysis.Results = map[string]model.ScoredResult{}
	}
	return table.Rows, analysis.Results, nil
}
