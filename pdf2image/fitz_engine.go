package pdf2image

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzEngine implements rendering using go-fitz (requires CGo and MuPDF)
type FitzEngine struct {
}

// NewFitzEngine creates a new Fitz-based engine
func NewFitzEngine() (*FitzEngine, error) {
	return &FitzEngine{}, nil
}

// NewHandle binds a document path to a new fitz handle without opening it
func (e *FitzEngine) NewHandle(path string) Handle {
	return &fitzHandle{
		frame: frame{xdpi: DefaultResolution, ydpi: DefaultResolution},
		path:  path,
	}
}

// Close cleans up resources (no-op, documents are owned by their handles)
func (e *FitzEngine) Close() error {
	return nil
}

type fitzHandle struct {
	frame
	path string
	doc  *fitz.Document
}

// open lazily opens the document on first use
func (h *fitzHandle) open() error {
	if h.doc != nil {
		return nil
	}
	doc, err := fitz.New(h.path)
	if err != nil {
		return fmt.Errorf("unable to open PDF document: %w", err)
	}
	h.doc = doc
	return nil
}

func (h *fitzHandle) PageCount() (int, error) {
	if err := h.open(); err != nil {
		return 0, err
	}
	return h.doc.NumPage(), nil
}

func (h *fitzHandle) ReadPage(index int) error {
	if err := h.open(); err != nil {
		return err
	}
	img, err := h.doc.ImageDPI(index, float64(h.xdpi))
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", index, err)
	}
	h.img = img
	return nil
}

func (h *fitzHandle) Close() error {
	if h.doc == nil {
		return nil
	}
	err := h.doc.Close()
	h.doc = nil
	return err
}
