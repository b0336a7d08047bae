package dataset

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/resilience"
)

const (
	defaultMaxDownload = 256 << 20
	userAgent          = "deal-scout/1.0"
)

// HTTPLoader downloads a CSV or XLSX dataset. The format follows the URL
// path extension, then the response Content-Type.
type HTTPLoader struct {
	URL   string
	Sheet string
	// Client defaults to a client with a 60s timeout.
	Client *http.Client
	// Backoff retries 5xx, 429 and network errors.
	Backoff resilience.Backoff
	// MaxBytes caps the download. Zero means 256 MiB.
	MaxBytes int64
}

type download struct {
	body        []byte
	contentType string
}

// Load implements Loader.
func (l HTTPLoader) Load(ctx context.Context) (*Dataset, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	limit := l.MaxBytes
	if limit <= 0 {
		limit = defaultMaxDownload
	}

	start := time.Now()
	dl, err := resilience.DoVal(ctx, l.Backoff, "dataset download", func(ctx context.Context) (download, error) {
		return l.fetch(ctx, client, limit)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: download %s", l.URL)
	}
	zap.L().Info("dataset: downloaded",
		zap.String("url", l.URL),
		zap.Int("bytes", len(dl.body)),
		zap.Duration("duration", time.Since(start)),
	)

	if l.isWorkbook(dl.contentType) {
		return ReadXLSXBytes(dl.body, l.Sheet)
	}
	return ReadCSV(bytes.NewReader(dl.body))
}

func (l HTTPLoader) fetch(ctx context.Context, client *http.Client, limit int64) (download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return download{}, eris.Wrap(err, "dataset: build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return download{}, resilience.Transient(eris.Wrap(err, "dataset: request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return download{}, resilience.Transient(eris.Errorf("dataset: server returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return download{}, eris.Errorf("dataset: server returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return download{}, resilience.Transient(eris.Wrap(err, "dataset: read body"))
	}
	if int64(len(body)) > limit {
		return download{}, eris.Errorf("dataset: download exceeds %d bytes", limit)
	}
	return download{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

func (l HTTPLoader) isWorkbook(contentType string) bool {
	if u, err := url.Parse(l.URL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".xlsx":
			return true
		case ".csv":
			return false
		}
	}
	return strings.Contains(contentType, "spreadsheetml")
}
