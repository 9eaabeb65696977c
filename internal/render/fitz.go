package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// nativeDPI is the PDF point resolution that a scale factor of 1.0 maps to.
const nativeDPI = 72.0

// FitzLoader opens PDF documents with MuPDF.
type FitzLoader struct{}

// NewFitzLoader creates a PDF loader.
func NewFitzLoader() *FitzLoader {
	return &FitzLoader{}
}

// Load implements Loader.
func (l *FitzLoader) Load(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	return &fitzDocument{doc: doc}, nil
}

// fitzDocument adapts a MuPDF document to the Document interface. MuPDF
// handles are not safe for concurrent use, so every page operation holds the
// document mutex.
type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// PageCount implements Document.
func (d *fitzDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.NumPage()
}

// RenderPage implements Document.
func (d *fitzDocument) RenderPage(ctx context.Context, page int,
	scale float64) ([]byte, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1.0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// go-fitz pages are 0-based.
	img, err := d.doc.ImageDPI(page-1, nativeDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page, err)
	}

	return buf.Bytes(), nil
}

// RawText implements Document.
func (d *fitzDocument) RawText(ctx context.Context, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	text, err := d.doc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", page, err)
	}

	return text, nil
}

// Close implements Document.
func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.Close()
}

// Ensure the adapter satisfies the interfaces.
var (
	_ Loader   = (*FitzLoader)(nil)
	_ Document = (*fitzDocument)(nil)
)
