package pdf2image

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Engine is a rasterization backend capable of opening PDF documents
// and producing page images. Implementations exist for MuPDF (go-fitz)
// and PDFium (go-pdfium via WebAssembly).
type Engine interface {
	// NewHandle binds a document path to a new handle. No I/O happens
	// until the handle is first asked for pages.
	NewHandle(path string) Handle

	// Close cleans up any resources used by the engine
	Close() error
}

// Handle is an open (or about to be opened) document session. A handle
// carries the current resolution, the page image most recently read and
// the output format. Handles are mutable and not safe for concurrent use.
type Handle interface {
	// SetResolution sets the horizontal and vertical DPI used for
	// subsequent page reads.
	SetResolution(x, y int)

	// Resolution returns the currently configured DPI pair.
	Resolution() (x, y int)

	// PageCount opens the document if needed and returns its number of pages.
	PageCount() (int, error)

	// ReadPage renders the 0-indexed page at the current resolution,
	// replacing any previously read page image.
	ReadPage(index int) error

	// Flatten merges all layers of the current page image into a single
	// opaque raster on a white background.
	Flatten() error

	// SetFormat sets the serialization format (jpg, jpeg or png).
	SetFormat(format string)

	// Format returns the currently configured serialization format.
	Format() string

	// Image returns the current page image, or nil if no page has been read.
	Image() image.Image

	// SetImage replaces the current page image. Used by hooks.
	SetImage(img image.Image)

	// Bytes serializes the current page image in the configured format.
	Bytes() ([]byte, error)

	// Close releases the underlying document.
	Close() error
}

// NewEngine creates the default PDFium-based engine (pure Go, no CGo)
func NewEngine() (Engine, error) {
	return NewPDFiumEngine()
}

// NewEngineByName creates an engine by its configured name.
// Known names are "pdfium" and "fitz"; anything else falls back to pdfium.
func NewEngineByName(name string) (Engine, error) {
	switch name {
	case "fitz":
		return NewFitzEngine()
	default:
		return NewPDFiumEngine()
	}
}

// frame holds the handle state shared by all engine implementations:
// resolution, output format and the page image most recently read.
type frame struct {
	xdpi   int
	ydpi   int
	format string
	img    image.Image
}

func (f *frame) SetResolution(x, y int) {
	f.xdpi = x
	f.ydpi = y
}

func (f *frame) Resolution() (int, int) {
	return f.xdpi, f.ydpi
}

func (f *frame) SetFormat(format string) {
	f.format = format
}

func (f *frame) Format() string {
	return f.format
}

func (f *frame) Image() image.Image {
	return f.img
}

func (f *frame) SetImage(img image.Image) {
	f.img = img
}

// Flatten composites the page image over an opaque white background so
// transparent regions survive JPEG serialization.
func (f *frame) Flatten() error {
	if f.img == nil {
		return fmt.Errorf("no page image to flatten")
	}
	bounds := f.img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	f.img = imaging.Overlay(background, f.img, image.Pt(0, 0), 1.0)
	return nil
}

func (f *frame) Bytes() ([]byte, error) {
	if f.img == nil {
		return nil, fmt.Errorf("no page image to serialize")
	}
	var buf bytes.Buffer
	switch f.format {
	case FormatPNG:
		if err := imaging.Encode(&buf, f.img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("unable to encode png: %w", err)
		}
	default:
		// jpg, jpeg and the unset default all serialize as JPEG
		if err := imaging.Encode(&buf, f.img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
			return nil, fmt.Errorf("unable to encode jpeg: %w", err)
		}
	}
	return buf.Bytes(), nil
}
