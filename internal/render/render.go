// Package render defines the document rendering capability: turning a page
// of a loaded slide deck into a raster image, and pulling the raw embedded
// text out of a page. The production implementation wraps MuPDF via go-fitz.
package render

import "context"

// Document is a loaded slide deck. Pages are addressed by 1-based slide
// index everywhere above this boundary.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// RenderPage rasters the given page as PNG at the given scale
	// factor, where 1.0 corresponds to the document's native 72 DPI.
	RenderPage(ctx context.Context, page int, scale float64) ([]byte, error)

	// RawText returns the embedded text layer of the given page. It is
	// the extraction fallback when the vision model refuses a slide.
	RawText(ctx context.Context, page int) (string, error)

	// Close releases the underlying document resources.
	Close() error
}

// Loader opens documents from raw bytes.
type Loader interface {
	// Load parses a document from raw bytes.
	Load(data []byte) (Document, error)
}
