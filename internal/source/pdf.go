package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

// PDFText converts PDF documents to layout-preserving text with pdftotext.
type PDFText struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPDFText(cfg common.PDFConfig, logger *slog.Logger) *PDFText {
	if logger == nil {
		logger = slog.Default()
	}
	bin := cfg.Pdftotext
	if bin == "" {
		bin = "pdftotext"
	}
	return &PDFText{bin: bin, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner replaces the command runner.
func (p *PDFText) WithRunner(r Runner) *PDFText {
	p.runner = r
	return p
}

// Pages returns the text of each page. pdftotext separates pages with a form feed;
// the empty tail after the last one is dropped. A page with no text is kept as ""
// so page numbers stay aligned.
func (p *PDFText) Pages(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return nil, common.NewAppError("PDF_TEXT_FAILED", fmt.Sprintf("pdftotext %s: %s", path, msg), err)
	}

	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	blank := 0
	for _, pg := range pages {
		if strings.TrimSpace(pg) == "" {
			blank++
		}
	}
	p.logger.Debug("pdf.text", "path", path, "pages", len(pages), "blank_pages", blank)
	return pages, nil
}

// Text returns the whole document with pages joined by blank lines.
func (p *PDFText) Text(ctx context.Context, path string) (string, error) {
	pages, err := p.Pages(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}
