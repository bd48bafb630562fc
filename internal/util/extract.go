package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ReadDocumentText loads a document's text content. PDFs go through the
// pdf parser; everything else is read as plain text. Returns
// ErrNoExtractableText when nothing usable comes out (scanned PDFs, empty
// files).
func ReadDocumentText(path string) (string, error) {
	var text string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDFText(path)
	} else {
		text, err = readPlainText(path)
	}
	if err != nil {
		return "", err
	}
	text = SanitizeText(strings.TrimSpace(text))
	if text == "" {
		return "", ErrNoExtractableText
	}
	return text, nil
}

func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

func readPlainText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(b), nil
}
