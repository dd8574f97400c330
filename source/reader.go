// Package source turns user input (a posting URL, a PDF file or pasted text)
// into plain text plus a stable deduplication key.
package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/internal/httpclient"
	"github.com/teranos/jobtrail/logger"
)

// Kind identifies how an input is read
type Kind string

const (
	KindURL  Kind = "url"
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
	KindAuto Kind = "auto" // classify with Detect
)

// DirectInputOrigin is the Origin recorded for pasted text
const DirectInputOrigin = "direct input"

// ParseKind converts a user-supplied kind string; empty means auto
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindURL, KindPDF, KindText, KindAuto:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", errors.NewValidationError("unknown input kind %q (valid: url, pdf, text, auto)", s)
	}
}

// Input is a raw capture request
type Input struct {
	Kind  Kind
	Value string // URL, file path, or the text itself
	File  bool   // KindText only: Value is a path to a text file
	Data  []byte // KindPDF only: the PDF itself; Value is then the recorded origin
}

// Document is the text read from an input
type Document struct {
	Text   string
	Type   Kind   // url, pdf or text; never auto
	Key    string // deduplication key, see NormalizeURL and ContentKey
	Origin string // raw URL, PDF path, or DirectInputOrigin
}

// Options configures a Reader
type Options struct {
	Fetch        httpclient.Options
	PDFTimeout   time.Duration
	MinTextChars int
}

// Reader reads documents from URLs, PDF files and text
type Reader struct {
	client       *httpclient.SaferClient
	pdfTimeout   time.Duration
	minTextChars int
	logger       *zap.SugaredLogger
}

// NewReader creates a Reader from configuration
func NewReader(cfg *am.Config) *Reader {
	return NewReaderWithOptions(Options{
		Fetch: httpclient.Options{
			Timeout:        cfg.FetchTimeout(),
			UserAgent:      cfg.Fetch.UserAgent,
			MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
			BlockPrivateIP: cfg.Fetch.BlockPrivateIPs,
		},
		PDFTimeout:   cfg.PDFTimeout(),
		MinTextChars: cfg.Capture.MinTextChars,
	})
}

// NewReaderWithOptions creates a Reader with explicit options
func NewReaderWithOptions(opts Options) *Reader {
	if opts.PDFTimeout <= 0 {
		opts.PDFTimeout = 30 * time.Second
	}
	return &Reader{
		client:       httpclient.New(opts.Fetch),
		pdfTimeout:   opts.PDFTimeout,
		minTextChars: opts.MinTextChars,
		logger:       logger.ComponentLogger("source"),
	}
}

// Detect classifies raw user input: an http(s) URL, an existing .pdf file,
// an existing .txt file (read as text), or pasted text.
func Detect(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	if isHTTPURL(trimmed) {
		return Input{Kind: KindURL, Value: trimmed}
	}

	// Only single-line values can be paths
	if trimmed != "" && !strings.ContainsAny(trimmed, "\n\r") {
		ext := strings.ToLower(filepath.Ext(trimmed))
		if ext == ".pdf" || ext == ".txt" {
			if info, err := os.Stat(trimmed); err == nil && !info.IsDir() {
				if ext == ".pdf" {
					return Input{Kind: KindPDF, Value: trimmed}
				}
				return Input{Kind: KindText, Value: trimmed, File: true}
			}
		}
	}

	return Input{Kind: KindText, Value: raw}
}

// DetectRemote classifies input received over the network as an http(s) URL
// or pasted text. Unlike Detect it never looks at the local filesystem.
func DetectRemote(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	if isHTTPURL(trimmed) {
		return Input{Kind: KindURL, Value: trimmed}
	}
	return Input{Kind: KindText, Value: raw}
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Read reads in and returns its text and deduplication key.
// Failures wrap ErrFetch (URL), ErrParse (PDF) or ErrValidation (unusable input).
func (r *Reader) Read(ctx context.Context, in Input) (*Document, error) {
	if in.Kind == KindAuto || in.Kind == "" {
		in = Detect(in.Value)
	}

	start := time.Now()
	var (
		doc *Document
		err error
	)
	switch in.Kind {
	case KindURL:
		doc, err = r.readURL(ctx, in.Value)
	case KindPDF:
		if in.Data != nil {
			doc, err = r.ReadPDF(ctx, bytes.NewReader(in.Data), int64(len(in.Data)), in.Value)
		} else {
			doc, err = r.readPDFFile(ctx, in.Value)
		}
	case KindText:
		if in.File {
			doc, err = r.readTextFile(in.Value)
		} else {
			doc, err = r.readText(in.Value)
		}
	default:
		return nil, errors.NewValidationError("unknown input kind %q", in.Kind)
	}
	if err != nil {
		r.logger.Infow("source read failed",
			logger.FieldSourceType, in.Kind,
			logger.FieldErrorClass, errors.ClassOf(err),
			logger.FieldError, err)
		return nil, err
	}

	r.logger.Debugw("source read",
		logger.FieldSourceType, doc.Type,
		logger.FieldSourceKey, doc.Key,
		logger.FieldTextLen, len(doc.Text),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return doc, nil
}

// checkText rejects empty text and text shorter than the configured minimum
func (r *Reader) checkText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.WithHint(
			errors.NewValidationError("input text is empty"),
			"paste the posting text, or pass a URL or a .pdf path")
	}
	if r.minTextChars > 0 && len([]rune(trimmed)) < r.minTextChars {
		return errors.NewValidationError("input text is %d characters, need at least %d",
			len([]rune(trimmed)), r.minTextChars)
	}
	return nil
}
