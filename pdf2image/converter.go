// Package pdf2image converts pages of a PDF document into raster images.
// The actual rasterization is delegated to a pluggable Engine; the
// converter itself is configuration plus a thin render pipeline.
package pdf2image

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Supported output formats
const (
	FormatJPG  = "jpg"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// DefaultResolution is the DPI used when none is configured
const DefaultResolution = 144

// allowedFormats is the fixed set of accepted output formats
var allowedFormats = map[string]bool{
	FormatJPG:  true,
	FormatJPEG: true,
	FormatPNG:  true,
}

// Converter converts pages of one PDF document to image files. A converter
// is bound to a single document for its lifetime and owns one engine
// handle. It is not safe for concurrent use.
type Converter struct {
	source     string // path or URL as given by the caller
	path       string // local path the engine reads from
	tempFile   string // staged download to remove on Close, if any
	engine     Engine
	ownsEngine bool
	handle     Handle
	resolution int
	format     string // empty means infer from the destination filename
	page       int    // 1-indexed
	pageCount  int    // -1 until computed
	before     Hook
	after      Hook
}

// Option configures a Converter at construction time
type Option func(*Converter)

// WithEngine uses the given engine instead of the default PDFium engine.
// The caller keeps ownership and must close the engine itself.
func WithEngine(e Engine) Option {
	return func(c *Converter) {
		c.engine = e
	}
}

// WithBefore sets the hook applied before page data is read
func WithBefore(h Hook) Option {
	return func(c *Converter) {
		c.before = h
	}
}

// WithAfter sets the hook applied after flatten and format are applied
func WithAfter(h Hook) Option {
	return func(c *Converter) {
		c.after = h
	}
}

// NewConverter creates a converter bound to source, which is either a local
// file path or an http(s) URL. URL content is fetched and staged to a
// temporary file before processing. The engine handle is created eagerly
// but the document is not opened until pages are first needed.
func NewConverter(source string, opts ...Option) (*Converter, error) {
	c := &Converter{
		source:     source,
		resolution: DefaultResolution,
		page:       1,
		pageCount:  -1,
	}
	for _, opt := range opts {
		opt(c)
	}

	if isURL(source) {
		path, err := stageURL(source)
		if err != nil {
			return nil, err
		}
		c.path = path
		c.tempFile = path
	} else {
		if _, err := os.Stat(source); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, source)
		}
		c.path = source
	}

	if c.engine == nil {
		engine, err := NewEngine()
		if err != nil {
			c.removeTempFile()
			return nil, err
		}
		c.engine = engine
		c.ownsEngine = true
	}
	c.handle = c.engine.NewHandle(c.path)
	return c, nil
}

// isURL reports whether source parses as an absolute http(s) URL.
// Syntax only, reachability is checked by the fetch itself.
func isURL(source string) bool {
	u, err := url.ParseRequestURI(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// stageURL downloads the document to a temporary local file
func stageURL(source string) (string, error) {
	resp, err := http.Get(source)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrDocumentNotFound, source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetching %s: status %s", ErrDocumentNotFound, source, resp.Status)
	}

	tempFile, err := os.CreateTemp("", "pdf2image-*.pdf")
	if err != nil {
		return "", fmt.Errorf("%w: unable to create temp file: %v", ErrDocumentNotFound, err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("%w: staging %s: %v", ErrDocumentNotFound, source, err)
	}
	return tempFile.Name(), nil
}

// SetResolution sets the DPI applied as both horizontal and vertical
// resolution before each render. Returns the converter for chaining.
func (c *Converter) SetResolution(dpi int) *Converter {
	c.resolution = dpi
	return c
}

// Resolution returns the configured DPI
func (c *Converter) Resolution() int {
	return c.resolution
}

// SetFormat sets the output format. Valid formats are jpg, jpeg and png;
// anything else returns ErrInvalidFormat and leaves the previous format
// in effect.
func (c *Converter) SetFormat(format string) error {
	f := strings.ToLower(format)
	if !allowedFormats[f] {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	c.format = f
	return nil
}

// Format returns the explicitly configured format, or empty if the format
// is inferred from the destination filename.
func (c *Converter) Format() string {
	return c.format
}

// SetPage selects the 1-indexed page rendered by subsequent calls.
// Pages outside the document return ErrPageDoesNotExist and leave the
// current page unchanged.
func (c *Converter) SetPage(page int) error {
	total, err := c.PageCount()
	if err != nil {
		return err
	}
	if page < 1 || page > total {
		return fmt.Errorf("%w: page %d of %d", ErrPageDoesNotExist, page, total)
	}
	c.page = page
	return nil
}

// Page returns the currently selected 1-indexed page
func (c *Converter) Page() int {
	return c.page
}

// Before sets the hook applied before page data is read, replacing any
// hook given at construction. Returns the converter for chaining.
func (c *Converter) Before(h Hook) *Converter {
	c.before = h
	return c
}

// After sets the hook applied after flatten and format, replacing any
// hook given at construction. Returns the converter for chaining.
func (c *Converter) After(h Hook) *Converter {
	c.after = h
	return c
}

// PageCount returns the number of pages in the document. The count is
// computed once by opening the document through the engine and cached for
// the converter's lifetime. Zero pages is a legitimate result.
func (c *Converter) PageCount() (int, error) {
	if c.pageCount >= 0 {
		return c.pageCount, nil
	}
	c.handle.SetResolution(c.resolution, c.resolution)
	if err := c.applyHook(c.before); err != nil {
		return 0, err
	}
	count, err := c.handle.PageCount()
	if err != nil {
		return 0, err
	}
	c.pageCount = count
	return count, nil
}

// Image renders the currently selected page and returns the engine handle
// holding the rasterized, flattened, formatted page. dest is only used to
// infer the output format when none has been set explicitly; nothing is
// written to it. Successive calls mutate and return the same handle.
func (c *Converter) Image(dest string) (Handle, error) {
	c.handle.SetResolution(c.resolution, c.resolution)
	if err := c.applyHook(c.before); err != nil {
		return nil, err
	}
	if err := c.handle.ReadPage(c.page - 1); err != nil {
		return nil, err
	}
	if err := c.handle.Flatten(); err != nil {
		return nil, err
	}
	c.handle.SetFormat(c.resolveFormat(dest))
	if err := c.applyHook(c.after); err != nil {
		return nil, err
	}
	return c.handle, nil
}

// applyHook runs a hook against the handle, replacing it with the hook's
// return value
func (c *Converter) applyHook(hook Hook) error {
	if hook == nil {
		return nil
	}
	handle, err := hook(c.handle, c.page)
	if err != nil {
		return err
	}
	c.handle = handle
	return nil
}

// resolveFormat picks the output format: the explicit setting wins, then
// the destination extension if it is an allowed format, then jpg.
func (c *Converter) resolveFormat(dest string) string {
	if c.format != "" {
		return c.format
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(dest), "."))
	if allowedFormats[ext] {
		return ext
	}
	return FormatJPG
}

// OutputFormat returns the format batch filenames are built with:
// the explicit setting, or jpg when the format is inferred.
func (c *Converter) OutputFormat() string {
	if c.format != "" {
		return c.format
	}
	return FormatJPG
}

// Write renders the currently selected page and writes the image bytes
// to dest.
func (c *Converter) Write(dest string) error {
	handle, err := c.Image(dest)
	if err != nil {
		return err
	}
	data, err := handle.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("unable to write image %s: %w", dest, err)
	}
	return nil
}

// WriteAll renders every page of the document into dir, naming files
// {prefix}{page}.{format}, and returns the produced paths in page order.
// A zero-page document produces no files. The converter's current page is
// left at the last page processed.
func (c *Converter) WriteAll(dir, prefix string) ([]string, error) {
	total, err := c.PageCount()
	if err != nil {
		return nil, err
	}
	outputs := make([]string, 0, total)
	for page := 1; page <= total; page++ {
		if err := c.SetPage(page); err != nil {
			return outputs, err
		}
		dest := filepath.Join(dir, fmt.Sprintf("%s%d.%s", prefix, page, c.OutputFormat()))
		if err := c.Write(dest); err != nil {
			return outputs, err
		}
		outputs = append(outputs, dest)
	}
	return outputs, nil
}

// Source returns the path or URL the converter was constructed with
func (c *Converter) Source() string {
	return c.source
}

// Path returns the local path the engine reads from (the staged temp file
// for URL sources)
func (c *Converter) Path() string {
	return c.path
}

// Close releases the engine handle, the engine if the converter created
// it, and any staged temp file.
func (c *Converter) Close() error {
	var firstErr error
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			firstErr = err
		}
		c.handle = nil
	}
	if c.ownsEngine && c.engine != nil {
		if err := c.engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.engine = nil
	}
	c.removeTempFile()
	return firstErr
}

func (c *Converter) removeTempFile() {
	if c.tempFile != "" {
		os.Remove(c.tempFile)
		c.tempFile = ""
	}
}
