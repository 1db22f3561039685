// Package render rasterizes PDF pages to RGB images via pdfium, the way
// the teacher's extraction engine opens documents and loads pages through
// a pooled pdfium instance.
package render

import (
	"fmt"
	"image"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"go.uber.org/zap"

	"github.com/docfields/hybriddetect/internal/pdferr"
)

// instanceTimeout bounds how long a render waits for a free pdfium
// instance from the pool.
const instanceTimeout = 30 * time.Second

// Page is one rendered PDF page. Pixel origin is top-left, matching the
// image package convention; detectors convert to normalized bottom-left
// BBox coordinates themselves.
type Page struct {
	Index    int
	Image    image.Image
	WidthPx  int
	HeightPx int
}

// emptyPage is the sentinel substituted when a single page fails to render.
func emptyPage(index int) Page {
	return Page{Index: index, Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), WidthPx: 1, HeightPx: 1}
}

// Renderer rasterizes PDF pages at a configured DPI using a pooled pdfium
// worker instance.
type Renderer struct {
	pool pdfium.Pool
	dpi  int
	log  *zap.SugaredLogger
}

// New builds a Renderer backed by a fresh single-instance pdfium pool. The
// caller must call Close when done.
func New(dpi int, log *zap.SugaredLogger) (*Renderer, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindRenderFailure, "init pdfium pool", err)
	}
	return &Renderer{pool: pool, dpi: dpi, log: log}, nil
}

// Close releases the underlying pdfium pool.
func (r *Renderer) Close() error {
	return r.pool.Close()
}

// RenderPages produces one raster per page of the PDF at path. A page that
// fails to render yields an empty sentinel and is logged; the call itself
// only fails when the document cannot be opened or its page count cannot
// be read (spec §4.2: per-page failure is non-fatal, per-PDF failure
// propagates).
func (r *Renderer) RenderPages(path string) ([]Page, error) {
	instance, err := r.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindRenderFailure, "acquire pdfium instance", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{FilePath: &path})
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindRenderFailure, "open document", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return nil, pdferr.Wrap(pdferr.KindRenderFailure, "get page count", err)
	}

	pages := make([]Page, count.PageCount)
	for i := 0; i < count.PageCount; i++ {
		page, err := r.renderPage(instance, doc.Document, i)
		if err != nil {
			if r.log != nil {
				r.log.Warnw("page render failed, substituting empty raster", "page_index", i, "error", err)
			}
			pages[i] = emptyPage(i)
			continue
		}
		pages[i] = page
	}
	return pages, nil
}

func (r *Renderer) renderPage(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT, index int) (Page, error) {
	loaded, err := instance.FPDF_LoadPage(&requests.FPDF_LoadPage{Document: doc, Index: index})
	if err != nil {
		return Page{}, fmt.Errorf("load page %d: %w", index, err)
	}
	defer instance.FPDF_ClosePage(&requests.FPDF_ClosePage{Page: loaded.Page})

	rendered, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: requests.Page{ByReference: &loaded.Page},
		DPI:  r.dpi,
	})
	if err != nil {
		return Page{}, fmt.Errorf("render page %d: %w", index, err)
	}
	if rendered.Result.Image == nil {
		return Page{}, fmt.Errorf("render page %d: empty image", index)
	}
	bounds := rendered.Result.Image.Bounds()
	return Page{
		Index:    index,
		Image:    rendered.Result.Image,
		WidthPx:  bounds.Dx(),
		HeightPx: bounds.Dy(),
	}, nil
}
