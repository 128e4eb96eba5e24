package apt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
)

// NewHTTPClient returns the http.Client used by default for all repository
// fetches. Plain GET requests only; the repository trust model relies on
// signature verification, not transport authentication.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}
	return &http.Client{Transport: transport}
}

// fetch retrieves url and returns the response body. A transport error or a
// non-200 status is an error; this is the mandatory-fetch path, the caller
// wraps the result into its own error kind.
func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// tryFetch retrieves url and returns nil on any failure. This is the
// optional-fetch path: a missing InRelease or index candidate degrades to
// the next candidate instead of aborting. No retries are performed.
func (d *Downloader) tryFetch(ctx context.Context, url string) []byte {
	body, err := d.fetch(ctx, url)
	if err != nil {
		return nil
	}
	return body
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return defaultClient
}

var defaultClient = NewHTTPClient()
