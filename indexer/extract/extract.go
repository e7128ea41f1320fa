// Package extract maps document files to plain text, dispatching on the
// file extension. Extraction never fails past this boundary: anything
// unreadable yields an empty string.
package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".txt":  {},
	".md":   {},
	".docx": {},
	".json": {},
	".csv":  {},
}

// Supported reports whether the file extension is one the indexer can
// extract text from.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Hidden reports whether the file name starts with a dot.
func Hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Text extracts plain text from the file at path. An empty string is the
// uniform "could not extract" signal.
func Text(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return fromPDF(path)
	case ".docx":
		return fromDocx(path)
	case ".txt", ".md", ".json", ".csv":
		return fromPlainText(path)
	default:
		slog.Warn("unsupported file type", "path", path)
		return ""
	}
}

// fromPDF concatenates the extracted text of every page. Pages without
// text contribute nothing; a broken file yields an empty string.
func fromPDF(path string) string {
	f, reader, err := pdf.Open(path)
	if err != nil {
		slog.Warn("error reading PDF", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("error extracting PDF page", "path", path, "page", i, "error", err)
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// fromDocx opens the file as a zip archive and pulls the text runs out of
// the main document part, one line per paragraph.
func fromDocx(path string) string {
	zr, err := zip.OpenReader(path)
	if err != nil {
		slog.Warn("error reading DOCX", "path", path, "error", err)
		return ""
	}
	defer zr.Close()

	var part io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part, err = f.Open()
			break
		}
	}
	if err != nil || part == nil {
		slog.Warn("DOCX missing document part", "path", path)
		return ""
	}
	defer part.Close()

	dec := xml.NewDecoder(part)
	var paragraphs []string
	var para strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				if para.Len() > 0 {
					paragraphs = append(paragraphs, para.String())
					para.Reset()
				}
			}
		case xml.CharData:
			if inRun {
				para.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n")
}

// fromPlainText reads raw bytes and decodes permissively: invalid UTF-8
// is dropped, not fatal.
func fromPlainText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("error reading file", "path", path, "error", err)
		return ""
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
}
