package source

import (
	"context"
	"io"
	"net/http"
	"os"
)

// HTTPDownloader is the shared HTTP client every remote backend downloads
// archives through (spec §4.8).
type HTTPDownloader struct {
	Client *http.Client
}

// NewHTTPDownloader returns a Downloader using client, or http.DefaultClient
// if client is nil.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDownloader{Client: client}
}

// Download writes url's body to destPath+".part", then atomically renames
// it to destPath once the transfer completes (spec §4.8: "partial downloads
// write to file.part and are atomically renamed on completion").
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string, progress Progress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{URL: url, Status: resp.StatusCode}
	}

	partPath := destPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return err
	}
	var written int64
	cw := &countingWriter{w: f, total: resp.ContentLength, progress: progress, n: &written}
	_, copyErr := io.Copy(cw, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(partPath)
		return copyErr
	}
	if closeErr != nil {
		os.Remove(partPath)
		return closeErr
	}
	return os.Rename(partPath, destPath)
}

type countingWriter struct {
	w        io.Writer
	total    int64
	n        *int64
	progress Progress
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	if c.progress != nil {
		c.progress(*c.n, c.total)
	}
	return n, err
}

// HTTPStatusError reports a non-200 response fetching a source archive.
type HTTPStatusError struct {
	URL    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return "unexpected HTTP status " + http.StatusText(e.Status) + " fetching " + e.URL
}
