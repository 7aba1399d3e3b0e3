// Package archive bundles named images into a zip archive.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultFormat is the extension used for entries without a format
const DefaultFormat = "png"

// DefaultArchiveName is used when no archive name is given
const DefaultArchiveName = "images"

// Fetcher resolves an entry source to bytes. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Entry is one image to include in an archive
type Entry struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
}

// FileName is Name + "." + Format, with Format defaulting to png
func (e Entry) FileName() string {
	format := strings.TrimPrefix(strings.TrimSpace(e.Format), ".")
	if format == "" {
		format = DefaultFormat
	}
	return e.Name + "." + format
}

// Mode decides what happens when an entry cannot be fetched
type Mode int

const (
	// AllOrNothing fails the whole export on the first fetch failure
	AllOrNothing Mode = iota
	// BestEffort leaves failed entries out and reports them in Result.Skipped
	BestEffort
)

func (m Mode) String() string {
	if m == BestEffort {
		return "best-effort"
	}
	return "all-or-nothing"
}

// ParseMode accepts "all-or-nothing" and "best-effort"; empty means AllOrNothing
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all-or-nothing", "all":
		return AllOrNothing, nil
	case "best-effort", "besteffort", "partial":
		return BestEffort, nil
	default:
		return AllOrNothing, fmt.Errorf("archive: unknown mode %q", s)
	}
}

// ContentFetchError reports the entry whose content could not be fetched
type ContentFetchError struct {
	Name  string
	Cause error
}

func (e *ContentFetchError) Error() string {
	return fmt.Sprintf("archive: fetch %s: %v", e.Name, e.Cause)
}

func (e *ContentFetchError) Unwrap() error {
	return e.Cause
}

// Skipped describes an entry left out in BestEffort mode
type Skipped struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Result summarizes an export
type Result struct {
	Written []string  `json:"written"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// ArchiveFileName returns name + ".zip", reduced to a plain file name
func ArchiveFileName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".zip")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == "" {
		name = DefaultArchiveName
	}
	return name + ".zip"
}

type exporterConfig struct {
	mode        Mode
	concurrency int
	progress    func(float64)
	logger      *slog.Logger
}

// Option configures an [Exporter].
type Option func(*exporterConfig)

// WithMode sets the failure policy. Defaults to AllOrNothing.
func WithMode(mode Mode) Option {
	return func(c *exporterConfig) {
		c.mode = mode
	}
}

// WithConcurrency bounds the number of concurrent fetches. Defaults to 4.
func WithConcurrency(n int) Option {
	return func(c *exporterConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProgress registers a callback receiving completed/total after every
// entry. Calls are serialized and never decrease.
func WithProgress(fn func(float64)) Option {
	return func(c *exporterConfig) {
		c.progress = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *exporterConfig) {
		c.logger = logger
	}
}

// Exporter fetches entries and writes them into zip archives.
type Exporter struct {
	fetcher Fetcher
	cfg     exporterConfig
}

// New creates an Exporter fetching entry sources through fetcher.
func New(fetcher Fetcher, opts ...Option) *Exporter {
	cfg := exporterConfig{concurrency: 4}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Exporter{fetcher: fetcher, cfg: cfg}
}

type progressCounter struct {
	mu    sync.Mutex
	done  int
	total int
	fn    func(float64)
}

func (p *progressCounter) step() {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.fn(float64(p.done) / float64(p.total))
}

// Export fetches every entry concurrently and writes the archive to w with
// entries in input order. In AllOrNothing mode a failed fetch returns a
// *ContentFetchError and nothing is written to w.
func (e *Exporter) Export(ctx context.Context, entries []Entry, w io.Writer) (Result, error) {
	result := Result{Written: []string{}}
	progress := &progressCounter{total: len(entries), fn: e.cfg.progress}
	if len(entries) == 0 && progress.fn != nil {
		progress.fn(1.0)
	}

	entries = slices.Clone(entries)
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = strconv.Itoa(i)
		}
	}

	contents := make([][]byte, len(entries))
	failures := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			name := entry.FileName()
			data, err := e.fetcher.Fetch(gctx, entry.Source)
			if err != nil {
				fetchErr := &ContentFetchError{Name: name, Cause: err}
				if e.cfg.mode == AllOrNothing {
					return fetchErr
				}
				failures[i] = fetchErr
				e.cfg.logger.Warn("Skipping archive entry", "name", name, "error", err)
			} else {
				contents[i] = data
			}
			progress.step()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var fetchErr *ContentFetchError
		if !errors.As(err, &fetchErr) {
			return result, err
		}
		e.cfg.logger.Error("Archive export failed", "name", fetchErr.Name, "error", fetchErr.Cause)
		return result, fetchErr
	}

	zw := zip.NewWriter(w)
	for i, entry := range entries {
		if failures[i] != nil {
			result.Skipped = append(result.Skipped, Skipped{Name: entry.FileName(), Error: failures[i].Error()})
			continue
		}
		header := &zip.FileHeader{
			Name:     entry.FileName(),
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return result, fmt.Errorf("archive: add %s: %w", header.Name, err)
		}
		if _, err := fw.Write(contents[i]); err != nil {
			return result, fmt.Errorf("archive: write %s: %w", header.Name, err)
		}
		result.Written = append(result.Written, header.Name)
	}
	if err := zw.Close(); err != nil {
		return result, fmt.Errorf("archive: finalize: %w", err)
	}
	return result, nil
}

// ExportFile writes the archive to dir/ArchiveFileName(archiveName) and
// returns its path. The file only appears once the archive is complete.
func (e *Exporter) ExportFile(ctx context.Context, entries []Entry, dir, archiveName string) (string, Result, error) {
	path := filepath.Join(dir, ArchiveFileName(archiveName))

	tmp, err := os.CreateTemp(dir, ".archive-*.zip")
	if err != nil {
		return "", Result{}, fmt.Errorf("archive: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	result, err := e.Export(ctx, entries, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return "", result, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", result, fmt.Errorf("archive: move into place: %w", err)
	}
	return path, result, nil
}
