// Package render narrows the worker's view of the PDF engine down to the
// three operations it actually needs: one-time initialization, a single
// blocking render call, and a typed warn/fail error. It never multiplexes
// a render across goroutines — the engine it wraps is neither reentrant
// nor thread-safe, and the worker is the one place that invariant is
// enforced.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// Kind distinguishes a recoverable render warning from an unrecoverable
// failure.
type Kind int

// The two RenderError kinds.
const (
	KindWarn Kind = iota
	KindFail
)

// Error is the adapter's sole error type: a render either warns (the
// worker must reply 502 and exit so the supervisor replaces it) or fails
// outright (treated identically by the worker, but kept distinct for
// logging).
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// benignWarning matches the wkhtmltopdf CLI's known-benign stderr noise:
// unreachable remote assets and slow-script/stylesheet timeouts. Anything
// else on a non-zero exit is treated as a hard failure rather than a
// warning.
var benignWarning = regexp.MustCompile(`(?i)(ContentNotFoundError|ProtocolUnknownError|Failed to load|TimeoutError)`)

// Renderer wraps a single wkhtmltopdf invocation. It must be constructed
// exactly once per process via New.
type Renderer struct{}

// New initializes the renderer adapter for this process: it resolves the
// wkhtmltopdf binary on PATH by constructing (and discarding) one
// generator, so a missing/broken installation fails here, before the
// worker ever announces READY, rather than on the first real request.
func New() (*Renderer, error) {
	if _, err := wkhtmltopdf.NewPDFGenerator(); err != nil {
		return nil, fmt.Errorf("render: failed to initialize engine: %w", err)
	}
	return &Renderer{}, nil
}

// Render performs one synchronous, blocking conversion of url to a PDF
// byte stream using the supplied global and per-object settings (already
// coerced against the catalog in package settings). The caller must not
// call Render again until this call returns.
func (r *Renderer) Render(url string, global, object map[string]interface{}) ([]byte, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, &Error{Kind: KindFail, Message: fmt.Sprintf("failed to create generator: %v", err)}
	}

	applyGlobalSettings(pdfg, global)

	page := wkhtmltopdf.NewPage(url)
	applyObjectSettings(page, object)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		if benignWarning.MatchString(err.Error()) {
			return nil, &Error{Kind: KindWarn, Message: fmt.Sprintf("render warning for %s: %v", url, err)}
		}
		return nil, &Error{Kind: KindFail, Message: fmt.Sprintf("render failed for %s: %v", url, err)}
	}

	return pdfg.Bytes(), nil
}

func applyGlobalSettings(pdfg *wkhtmltopdf.PDFGenerator, global map[string]interface{}) {
	if v, ok := global["orientation"].(string); ok {
		pdfg.Orientation.Set(v)
	}
	if v, ok := global["dpi"].(uint64); ok {
		pdfg.Dpi.Set(uint(v))
	}
	if v, ok := global["copies"].(uint64); ok {
		pdfg.Copies.Set(int(v))
	}
	if v, ok := global["collate"].(bool); ok {
		pdfg.Collate.Set(v)
	}
	if v, ok := global["documentTitle"].(string); ok {
		pdfg.Title.Set(v)
	}
	if v, ok := global["margin.top"].(string); ok {
		pdfg.MarginTop.Set(parseMarginInches(v))
	}
	if v, ok := global["margin.bottom"].(string); ok {
		pdfg.MarginBottom.Set(parseMarginInches(v))
	}
	if v, ok := global["margin.left"].(string); ok {
		pdfg.MarginLeft.Set(parseMarginInches(v))
	}
	if v, ok := global["margin.right"].(string); ok {
		pdfg.MarginRight.Set(parseMarginInches(v))
	}
	if v, ok := global["size.pageSize"].(string); ok {
		pdfg.PageSize.Set(v)
	}
	if v, ok := global["outline"].(bool); ok {
		pdfg.Outline.Set(v)
	}
	if v, ok := global["outlineDepth"].(uint64); ok {
		pdfg.OutlineDepth.Set(uint(v))
	}
	if v, ok := global["dumpOutline"].(string); ok {
		pdfg.DumpOutline.Set(v)
	}
	if v, ok := global["pageOffset"].(int64); ok {
		pdfg.PageOffset.Set(int(v))
	}
	if v, ok := global["imageDPI"].(uint64); ok {
		pdfg.ImageDpi.Set(uint(v))
	}
	if v, ok := global["imageQuality"].(uint64); ok {
		pdfg.ImageQuality.Set(uint(v))
	}
	if v, ok := global["colorMode"].(string); ok {
		// the engine exposes color mode as a single Grayscale flag rather
		// than a tri-state; any value other than "Grayscale" means color.
		pdfg.Grayscale.Set(v == "Grayscale")
	}
	// size.width, size.height, useCompression, out and load.cookieJar are
	// not applied to the generator.
}

func applyObjectSettings(page *wkhtmltopdf.PageOptions, object map[string]interface{}) {
	if v, ok := object["useExternalLinks"].(bool); ok {
		page.UseExternalLinks.Set(v)
	}
	if v, ok := object["produceForms"].(bool); ok {
		page.ProduceForms.Set(v)
	}
	if v, ok := object["load.windowStatus"].(string); ok {
		page.WindowStatus.Set(v)
	} else {
		page.WindowStatus.Set("ready")
	}
	if v, ok := object["load.username"].(string); ok {
		page.Username.Set(v)
	}
	if v, ok := object["load.password"].(string); ok {
		page.Password.Set(v)
	}
	if v, ok := object["web.enableJavascript"].(bool); ok {
		page.EnableJavascript.Set(v)
	}
	if v, ok := object["web.loadImages"].(bool); ok {
		page.LoadImages.Set(v)
	}
	if v, ok := object["useLocalLinks"].(bool); ok {
		page.UseLocalLinks.Set(v)
	}
	if v, ok := object["includeInOutline"].(bool); ok {
		page.IncludeInOutline.Set(v)
	}
	if v, ok := object["pagesCount"].(bool); ok {
		page.PagesCount.Set(v)
	}
	if v, ok := object["load.jsdelay"].(uint64); ok {
		page.JavascriptDelay.Set(uint(v))
	}
	if v, ok := object["load.zoomFactor"].(string); ok {
		page.Zoom.Set(parseZoomFactor(v))
	}
	if v, ok := object["load.stopSlowScripts"].(bool); ok {
		page.StopSlowScript.Set(v)
	}
	if v, ok := object["load.loadErrorHandling"].(string); ok {
		page.LoadErrorHandling.Set(v)
	}
	if v, ok := object["load.proxy"].(string); ok {
		page.Proxy.Set(v)
	}
	if v, ok := object["web.background"].(bool); ok {
		page.Background.Set(v)
	}
	if v, ok := object["web.enableIntelligentShrinking"].(bool); ok {
		page.EnableIntelligentShrinking.Set(v)
	}
	if v, ok := object["web.minimumFontSize"].(uint64); ok {
		page.MinimumFontSize.Set(uint(v))
	}
	if v, ok := object["web.defaultEncoding"].(string); ok {
		page.DefaultEncoding.Set(v)
	}
	if v, ok := object["web.printMediaType"].(bool); ok {
		page.PrintMediaType.Set(v)
	}
	if v, ok := object["web.userStyleSheet"].(string); ok {
		page.UserStyleSheet.Set(v)
	}
	if v, ok := object["web.enablePlugins"].(bool); ok {
		page.EnablePlugins.Set(v)
	}

	applyHeaderFooterSettings(page, object)

	// toc.*, load.blockLocalFileAccess and the bare "page" key have no
	// generator field we can bind with confidence and are left uncoerced
	// into the engine.
}

func applyHeaderFooterSettings(page *wkhtmltopdf.PageOptions, object map[string]interface{}) {
	if v, ok := object["header.fontName"].(string); ok {
		page.HeaderFontName.Set(v)
	}
	if v, ok := object["header.fontSize"].(string); ok {
		page.HeaderFontSize.Set(parseUintString(v))
	}
	if v, ok := object["header.left"].(string); ok {
		page.HeaderLeft.Set(v)
	}
	if v, ok := object["header.center"].(string); ok {
		page.HeaderCenter.Set(v)
	}
	if v, ok := object["header.right"].(string); ok {
		page.HeaderRight.Set(v)
	}
	if v, ok := object["header.line"].(bool); ok {
		page.HeaderLine.Set(v)
	}
	if v, ok := object["header.spacing"].(float64); ok {
		page.HeaderSpacing.Set(v)
	}
	if v, ok := object["header.htmlUrl"].(string); ok {
		page.HeaderHTML.Set(v)
	}
	if v, ok := object["footer.fontName"].(string); ok {
		page.FooterFontName.Set(v)
	}
	if v, ok := object["footer.fontSize"].(string); ok {
		page.FooterFontSize.Set(parseUintString(v))
	}
	if v, ok := object["footer.left"].(string); ok {
		page.FooterLeft.Set(v)
	}
	if v, ok := object["footer.center"].(string); ok {
		page.FooterCenter.Set(v)
	}
	if v, ok := object["footer.right"].(string); ok {
		page.FooterRight.Set(v)
	}
	if v, ok := object["footer.line"].(bool); ok {
		page.FooterLine.Set(v)
	}
	if v, ok := object["footer.spacing"].(float64); ok {
		page.FooterSpacing.Set(v)
	}
	if v, ok := object["footer.htmlUrl"].(string); ok {
		page.FooterHTML.Set(v)
	}
}

// parseMarginInches accepts a margin expressed as a bare number of inches
// (the catalog declares margins as String so operators can write "2" or
// "2in"); a value that does not parse yields 0, which the caller applies as
// the margin, rather than being surfaced as a render-time error, since
// coercion against the catalog has already validated its declared type.
func parseMarginInches(v string) uint {
	trimmed := bytes.TrimSuffix([]byte(v), []byte("in"))
	n, err := strconv.ParseUint(string(trimmed), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

// parseUintString parses a catalog value declared as String but consumed by
// a Uint-typed generator field (header/footer font sizes); a value that
// does not parse yields 0, which the caller applies, rather than being
// surfaced as a render-time error.
func parseUintString(v string) uint {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}

// parseZoomFactor parses load.zoomFactor, declared String in the catalog
// but consumed by a Float-typed generator field; a value that does not
// parse yields 0, which the caller applies, rather than being surfaced as
// a render-time error.
func parseZoomFactor(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
