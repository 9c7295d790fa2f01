package pdfquiz

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrDocumentTooLarge    = errors.New("document too large")
	ErrUnsupportedDocument = errors.New("only PDF documents are supported")
)

var pdfMagic = []byte("%PDF-")

// Document is an uploaded file reduced to its text
type Document struct {
	Name string
	Size int64
	Text string
}

// ReadDocument reads at most maxBytes of an uploaded PDF and extracts its text
func ReadDocument(name, contentType string, r io.Reader, maxBytes int64) (*Document, error) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "", "application/pdf", "application/octet-stream":
	default:
		return nil, fmt.Errorf("%w: %s has type %s", ErrUnsupportedDocument, name, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrDocumentTooLarge, name, maxBytes)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrUnsupportedDocument, name)
	}

	text, err := extractText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", name, err)
	}

	return &Document{
		Name: name,
		Size: int64(len(data)),
		Text: truncateText(text, MaxSourceChars),
	}, nil
}

func extractText(data []byte) (text string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// truncateText cuts s to at most n bytes without splitting a rune
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
