package source

import (
	"os"
	"unicode/utf8"

	"github.com/teranos/jobtrail/errors"
)

// readText passes pasted text through verbatim
func (r *Reader) readText(text string) (*Document, error) {
	if err := r.checkText(text); err != nil {
		return nil, err
	}
	return &Document{
		Text:   text,
		Type:   KindText,
		Key:    ContentKey(text),
		Origin: DirectInputOrigin,
	}, nil
}

// readTextFile reads a UTF-8 text file as pasted text, keeping the path as origin
func (r *Reader) readTextFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", path), errors.ErrValidation)
	}
	if !utf8.Valid(data) {
		return nil, errors.NewValidationError("%s is not UTF-8 text", path)
	}

	doc, err := r.readText(string(data))
	if err != nil {
		return nil, err
	}
	doc.Origin = path
	return doc, nil
}
