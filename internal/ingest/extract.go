// Package ingest turns uploaded files and web pages into knowledge chunks.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/mtlprog/agentdesk/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DocType is the extraction strategy for a document.
type DocType string

const (
	DocTypePDF  DocType = "pdf"
	DocTypeHTML DocType = "html"
	DocTypeText DocType = "text"
)

var extensionTypes = map[string]DocType{
	".pdf":      DocTypePDF,
	".html":     DocTypeHTML,
	".htm":      DocTypeHTML,
	".txt":      DocTypeText,
	".md":       DocTypeText,
	".markdown": DocTypeText,
}

var mimeTypes = map[string]DocType{
	"application/pdf":       DocTypePDF,
	"text/html":             DocTypeHTML,
	"application/xhtml+xml": DocTypeHTML,
	"text/plain":            DocTypeText,
	"text/markdown":         DocTypeText,
	"text/x-markdown":       DocTypeText,
}

// DetectType picks the extractor from the MIME type, falling back to the file extension.
func DetectType(fileName, mimeType string) (DocType, error) {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		if t, ok := mimeTypes[strings.ToLower(mediaType)]; ok {
			return t, nil
		}
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedFileType, fileName, mimeType)
}

// Extract returns the plain text of a document.
func Extract(content []byte, fileName, mimeType string) (string, error) {
	docType, err := DetectType(fileName, mimeType)
	if err != nil {
		return "", err
	}

	switch docType {
	case DocTypePDF:
		return ExtractPDF(content)
	case DocTypeHTML:
		return ExtractHTML(bytes.NewReader(content))
	default:
		return string(bytes.ToValidUTF8(content, nil)), nil
	}
}

// ExtractPDF reads the text layer of a PDF.
func ExtractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Head:     true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true, atom.Nav: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Title: true,
}

// ExtractHTML returns the visible text of an HTML document. Block elements become
// paragraph breaks, <br> a line break.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br {
				sb.WriteByte('\n')
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			sb.WriteString("\n\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteString("\n\n")
		}
	}
	walk(doc)

	return Normalize(sb.String()), nil
}
