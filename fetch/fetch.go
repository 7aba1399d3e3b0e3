// Package fetch resolves image and document sources to their binary content.
//
// Supported sources are data URLs (base64 or percent-encoded), http(s) URLs
// when remote fetching is enabled, and paths under a configured local prefix
// that map onto a directory on disk.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	// ErrUnsupportedSource is returned for sources no configured resolver accepts
	ErrUnsupportedSource = errors.New("fetch: unsupported source")

	// ErrMalformedDataURL is returned for data URLs without a comma separator
	ErrMalformedDataURL = errors.New("fetch: malformed data URL")
)

// Fetcher resolves sources. The zero value only understands data URLs.
type Fetcher struct {
	// Client is used for http and https sources
	Client *http.Client
	// AllowRemote enables http and https sources
	AllowRemote bool
	// LocalPrefix is the URL path prefix served from LocalRoot, e.g. "/uploads/"
	LocalPrefix string
	// LocalRoot is the directory LocalPrefix maps to
	LocalRoot string
	// LocalHidden names top-level directories under LocalRoot that never resolve
	LocalHidden []string
	// MaxBytes limits remote and local reads, zero means unlimited
	MaxBytes int64
}

// New creates a Fetcher with an HTTP client using the given timeout
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch returns the bytes behind source
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		_, data, err := DecodeDataURL(source)
		return data, err
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if !f.AllowRemote {
			return nil, fmt.Errorf("%w: remote sources are disabled", ErrUnsupportedSource)
		}
		return f.fetchRemote(ctx, source)
	case f.LocalPrefix != "" && strings.HasPrefix(source, f.LocalPrefix):
		return f.fetchLocal(strings.TrimPrefix(source, f.LocalPrefix))
	default:
		return nil, fmt.Errorf("%w: %.40q", ErrUnsupportedSource, source)
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, source string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", source, resp.StatusCode)
	}
	return f.readAll(resp.Body)
}

func (f *Fetcher) fetchLocal(rel string) ([]byte, error) {
	name, err := f.LocalPath(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return f.readAll(file)
}

// LocalPath maps rel, a URL path below LocalPrefix, onto a file under LocalRoot.
// Paths inside a LocalHidden directory are rejected.
func (f *Fetcher) LocalPath(rel string) (string, error) {
	if f.LocalRoot == "" {
		return "", fmt.Errorf("%w: no local root configured", ErrUnsupportedSource)
	}
	unescaped, err := url.PathUnescape(rel)
	if err != nil {
		return "", fmt.Errorf("invalid local path %q: %w", rel, err)
	}
	// Clean against "/" first so ".." can never climb above LocalRoot
	cleaned := strings.TrimPrefix(path.Clean("/"+unescaped), "/")
	top, _, _ := strings.Cut(cleaned, "/")
	if slices.Contains(f.LocalHidden, top) {
		return "", fmt.Errorf("%w: %s is not public", ErrUnsupportedSource, rel)
	}
	return filepath.Join(f.LocalRoot, filepath.FromSlash(cleaned)), nil
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	if f.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("fetch: source exceeds %d bytes", f.MaxBytes)
	}
	return data, nil
}

// DecodeDataURL splits a data URL into its media type and decoded payload
func DecodeDataURL(source string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(source, "data:")
	if !ok {
		return "", nil, ErrMalformedDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformedDataURL
	}

	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %w", ErrMalformedDataURL, err)
			}
		}
		return mediaType, data, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedDataURL, err)
	}
	return mediaType, []byte(decoded), nil
}

// EncodeDataURL builds a base64 data URL
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
