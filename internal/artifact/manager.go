package artifact

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/deal-scout/internal/feature"
	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/metrics"
)

const (
	modelsDir      = "models"
	metaFile       = "meta.yaml"
	bundleFile     = "bundle.json"
	classifierFile = "classifier.json"
	fundingFile    = "funding.json"
	valuationFile  = "valuation.json"
)

// Manager reads and writes artifact sets under a cache directory.
type Manager struct {
	dir    string
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness since the manager was created.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewManager returns a manager rooted at dir. Nothing is created until Save.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the cache root.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) modelPath(name string) string {
	return filepath.Join(m.dir, modelsDir, name)
}

// Save writes set under fp. The metadata file is removed first and written
// last, so a crash mid-save leaves a set that Load treats as a miss.
func (m *Manager) Save(fp string, set *Set) error {
	if set == nil || set.Classifier == nil || set.Funding == nil || set.Valuation == nil {
		return eris.New("artifact: incomplete set")
	}
	if err := os.MkdirAll(filepath.Join(m.dir, modelsDir), 0o755); err != nil {
		return eris.Wrap(err, "artifact: create models dir")
	}
	if err := os.Remove(m.modelPath(metaFile)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "artifact: remove stale meta")
	}

	bundle, err := json.Marshal(set.Classifier.Bundle())
	if err != nil {
		return eris.Wrap(err, "artifact: encode bundle")
	}
	clf, err := learn.MarshalClassifier(set.Classifier.Model())
	if err != nil {
		return err
	}
	funding, err := learn.MarshalRegressor(set.Funding)
	if err != nil {
		return err
	}
	valuation, err := learn.MarshalRegressor(set.Valuation)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{bundleFile, bundle},
		{classifierFile, clf},
		{fundingFile, funding},
		{valuationFile, valuation},
	}
	for _, f := range files {
		if err := writeAtomic(m.modelPath(f.name), f.data); err != nil {
			return err
		}
	}

	meta := set.Meta
	meta.Fingerprint = fp
	meta.SchemaVersion = SchemaVersion
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return eris.Wrap(err, "artifact: encode meta")
	}
	if err := writeAtomic(m.modelPath(metaFile), raw); err != nil {
		return err
	}
	set.Meta = meta
	return nil
}

// Load returns the set saved under fp. Any missing, stale or corrupt file
// counts as a miss; Load never fails.
func (m *Manager) Load(fp string) (*Set, bool) {
	set, err := m.load(fp)
	metrics.RecordCacheLookup(err == nil)
	if err != nil {
		m.misses.Add(1)
		if !os.IsNotExist(eris.Cause(err)) {
			zap.L().Warn("artifact: cache miss", zap.String("fingerprint", fp), zap.Error(err))
		}
		return nil, false
	}
	m.hits.Add(1)
	return set, true
}

var errStale = eris.New("artifact: stale cache entry")

func (m *Manager) load(fp string) (*Set, error) {
	raw, err := os.ReadFile(m.modelPath(metaFile))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, eris.Wrap(err, "artifact: decode meta")
	}
	if meta.Fingerprint != fp || meta.SchemaVersion != SchemaVersion {
		return nil, eris.Wrapf(errStale, "artifact: have %s/%s, want %s/%s",
			meta.Fingerprint, meta.SchemaVersion, fp, SchemaVersion)
	}

	raw, err = os.ReadFile(m.modelPath(bundleFile))
	if err != nil {
		return nil, eris.Wrap(err, "artifact: read bundle")
	}
	bundle := &feature.Bundle{}
	if err := json.Unmarshal(raw, bundle); err != nil {
		return nil, eris.Wrap(err, "artifact: decode bundle")
	}
	if err := bundle.Validate(); err != nil {
		return nil, eris.Wrap(err, "artifact: invalid bundle")
	}

	raw, err = os.ReadFile(m.modelPath(classifierFile))
	if err != nil {
		return nil, eris.Wrap(err, "artifact: read classifier")
	}
	clf, err := learn.UnmarshalClassifier(raw)
	if err != nil {
		return nil, err
	}
	if err := checkWidth("classifier", clf, bundle.Width()); err != nil {
		return nil, err
	}

	set := &Set{Classifier: Bind(clf, bundle), Meta: meta}
	if set.Funding, err = m.loadRegressor(fundingFile); err != nil {
		return nil, err
	}
	if set.Valuation, err = m.loadRegressor(valuationFile); err != nil {
		return nil, err
	}
	if err := checkWidth("funding regressor", set.Funding, bundle.Width()); err != nil {
		return nil, err
	}
	if err := checkWidth("valuation regressor", set.Valuation, bundle.Width()); err != nil {
		return nil, err
	}
	return set, nil
}

func checkWidth(name string, m any, want int) error {
	if got := learn.InputWidth(m); got != want {
		return eris.Errorf("artifact: %s expects %d features, bundle has %d", name, got, want)
	}
	return nil
}

func (m *Manager) loadRegressor(name string) (*learn.ForestRegressor, error) {
	raw, err := os.ReadFile(m.modelPath(name))
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", name)
	}
	return learn.UnmarshalRegressor(raw)
}

// Stats returns hit/miss counters.
func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: misses, HitRate: rate}
}

// writeAtomic writes data to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "artifact: create temp for %s", filepath.Base(path))
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()     //nolint:errcheck
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "artifact: write %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "artifact: close %s", filepath.Base(path))
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "artifact: rename %s", filepath.Base(path))
	}
	return nil
}
