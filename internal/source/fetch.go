package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "admcal/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	maxBodyBytes        = 16 << 20
)

// FetchResult is the outcome of one conditional GET.
type FetchResult struct {
	Body      []byte
	FromCache bool // true if the body came from the disk mirror
}

// mirrorMeta holds HTTP cache metadata for a single URL.
type mirrorMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher performs GET requests with ETag / Last-Modified revalidation and
// keeps the last good body of every URL on disk. When the network or the
// server fails, the mirrored body is served instead.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. cacheDir holds one subdirectory per URL; an
// empty cacheDir disables the mirror. timeout bounds each request; zero uses
// a 15s default.
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// Get fetches url. name is only used for logging.
func (f *Fetcher) Get(ctx context.Context, name, url, accept string) (FetchResult, error) {
	if url == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	var (
		mirror     string
		meta       mirrorMeta
		cachedBody []byte
	)
	if f.cacheDir != "" {
		mirror = f.mirrorPath(url)
		if err := os.MkdirAll(mirror, 0o700); err != nil {
			return FetchResult{}, err
		}
		meta, _ = loadMirrorMeta(mirror)
		cachedBody, _ = os.ReadFile(filepath.Join(mirror, "body"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("fetch start", "source", name, "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("fetch network error, using mirror", err, "source", name, "url", redactURL(url))
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return FetchResult{}, readErr
		}

		if mirror != "" {
			newMeta := mirrorMeta{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveMirror(mirror, newMeta, body); err != nil {
				// The fresh body is still good.
				appLog.Error("fetch mirror save failed", err, "source", name, "url", redactURL(url))
			}
		}

		appLog.Info("fetch success", "source", name, "url", redactURL(url), "bytes", len(body))
		return FetchResult{Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no mirrored body available")
		}
		appLog.Info("fetch not modified; using mirror", "source", name, "url", redactURL(url))
		// The mirror is current, so it is not stale.
		return FetchResult{Body: cachedBody}, nil

	default:
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using mirror", statusErr, "source", name, "url", redactURL(url), "status", resp.StatusCode)
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, statusErr
	}
}

func (f *Fetcher) mirrorPath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMirrorMeta(mirror string) (mirrorMeta, error) {
	var meta mirrorMeta
	data, err := os.ReadFile(filepath.Join(mirror, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return mirrorMeta{}, err
	}
	return meta, nil
}

func saveMirror(mirror string, meta mirrorMeta, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(mirror, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(mirror, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, so tokens in paths or query strings
// stay out of the logs.
//
//	https://example.com/path/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "url://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
