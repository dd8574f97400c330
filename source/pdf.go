package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/teranos/jobtrail/errors"
)

// readPDFFile extracts the text of every page of a local PDF
func (r *Reader) readPDFFile(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewValidationError("PDF %s does not exist", path)
		}
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), errors.ErrParse)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "stat %s", path), errors.ErrParse)
	}

	return r.ReadPDF(ctx, f, info.Size(), path)
}

// ReadPDF extracts the text of a PDF held by ra, such as an uploaded file.
// origin is recorded as the document's Origin.
func (r *Reader) ReadPDF(ctx context.Context, ra io.ReaderAt, size int64, origin string) (*Document, error) {
	text, err := r.extractPDF(ctx, ra, size)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", origin)
	}

	return &Document{
		Text:   text,
		Type:   KindPDF,
		Key:    ContentKey(text),
		Origin: origin,
	}, nil
}

// extractPDF runs text extraction bounded by the PDF timeout.
// The PDF library panics on some malformed files; those become ErrParse.
func (r *Reader) extractPDF(ctx context.Context, ra io.ReaderAt, size int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.pdfTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: errors.Newf("malformed PDF: %v", p)}
			}
		}()
		text, err := pdfPlainText(ra, size)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Wrapf(errors.ErrParse, "PDF text extraction exceeded %s", r.pdfTimeout)
		}
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", errors.WithHint(
				errors.Mark(errors.Wrap(res.err, "unreadable PDF"), errors.ErrParse),
				"encrypted or scanned PDFs have no extractable text; paste the text instead")
		}
		if strings.TrimSpace(res.text) == "" {
			return "", errors.WithHint(
				errors.Wrap(errors.ErrParse, "PDF contains no extractable text"),
				"scanned PDFs need OCR first; paste the text instead")
		}
		return res.text, nil
	}
}

// pdfPlainText concatenates the plain text of all pages
func pdfPlainText(ra io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.Wrapf(err, "page %d", i)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
