package pdf2image

import (
	"fmt"
	"os"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/responses"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumEngine implements rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumEngine struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumEngine creates a new PDFium-based engine using WebAssembly
func NewPDFiumEngine() (*PDFiumEngine, error) {
	// Single-threaded usage, keep the worker pool minimal
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumEngine{
		pool:     pool,
		instance: instance,
	}, nil
}

// NewHandle binds a document path to a new pdfium handle without opening it
func (e *PDFiumEngine) NewHandle(path string) Handle {
	return &pdfiumHandle{
		frame:    frame{xdpi: DefaultResolution, ydpi: DefaultResolution},
		path:     path,
		instance: e.instance,
	}
}

// Close cleans up resources used by the PDFium engine
func (e *PDFiumEngine) Close() error {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	e.instance = nil
	return nil
}

type pdfiumHandle struct {
	frame
	path     string
	instance pdfium.Pdfium
	doc      *responses.OpenDocument
}

// open lazily opens the document on first use
func (h *pdfiumHandle) open() error {
	if h.doc != nil {
		return nil
	}
	pdfBytes, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("unable to read PDF file: %w", err)
	}
	doc, err := h.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return fmt.Errorf("unable to open PDF document: %w", err)
	}
	h.doc = doc
	return nil
}

func (h *pdfiumHandle) PageCount() (int, error) {
	if err := h.open(); err != nil {
		return 0, err
	}
	pageCountResp, err := h.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: h.doc.Document,
	})
	if err != nil {
		return 0, fmt.Errorf("unable to get page count: %w", err)
	}
	return pageCountResp.PageCount, nil
}

func (h *pdfiumHandle) ReadPage(index int) error {
	if err := h.open(); err != nil {
		return err
	}
	pageRender, err := h.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: h.xdpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: h.doc.Document,
				Index:    index,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", index, err)
	}
	h.img = pageRender.Result.Image

	// Release WebAssembly resources for this render
	pageRender.Cleanup()
	return nil
}

func (h *pdfiumHandle) Close() error {
	if h.doc == nil {
		return nil
	}
	_, err := h.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: h.doc.Document,
	})
	h.doc = nil
	return err
}
