// Package extract pulls plain text out of uploaded document files.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dslipak/pdf"
)

var (
	// ErrUnsupportedType is returned for file extensions without an extractor.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyContent is returned when extraction yields no usable text.
	ErrEmptyContent = errors.New("no content extracted")
)

// AllowedExtensions lists the file types this system can ingest.
var AllowedExtensions = []string{".pdf", ".docx", ".html", ".txt", ".md"}

// TextBlock is one extracted span of document text.
type TextBlock struct {
	Text string
}

// Extract reads the file at path and returns its text content.
// The extractor is chosen by extension. Returns ErrUnsupportedType for
// unknown extensions and ErrEmptyContent when the file holds no text.
func Extract(path string) ([]TextBlock, error) {
	var text string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	case ".html", ".htm":
		text, err = extractHTML(path)
	case ".txt", ".md":
		text, err = extractText(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	blocks := toBlocks(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, filepath.Base(path))
	}
	return blocks, nil
}

// Allowed reports whether the filename has an ingestible extension.
func Allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// toBlocks splits extracted text into paragraph-level blocks, dropping
// whitespace-only spans.
func toBlocks(text string) []TextBlock {
	var blocks []TextBlock
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		blocks = append(blocks, TextBlock{Text: part})
	}
	return blocks
}

func extractText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func extractPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX unzips the document and strips the WordprocessingML tags
// from word/document.xml. A paragraph element becomes a newline.
func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX zip: %w", err)
	}
	defer r.Close()

	var documentXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var textBuilder strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				textBuilder.WriteString("\n")
			}
			if t.Name.Local == "tab" {
				textBuilder.WriteString("\t")
			}
		case xml.CharData:
			textBuilder.Write(t)
		}
	}

	return textBuilder.String(), nil
}

func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Drop script and style bodies before flattening to text.
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		// No block elements; fall back to whole-body text.
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}
	return strings.Join(parts, "\n\n"), nil
}
