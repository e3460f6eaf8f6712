package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strings"
	"unicode"
)

// wordText extracts raw text from Word documents. Modern .docx files are zip
// containers holding word/document.xml; legacy binary .doc files fall back
// to scanning for printable runs.
func (e *Extractor) wordText(ctx context.Context, fileName, mimeType string, data []byte) string {
	if mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		text, err := docxText(data)
		if err != nil {
			slog.WarnContext(ctx, "docx parse failed, substituting placeholder",
				"file_name", fileName,
				"error", err)
			return placeholder(fileName, "could not parse Word document")
		}
		return text
	}
	return legacyDocText(data)
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if doc == nil {
		return "", io.ErrUnexpectedEOF
	}
	defer doc.Close()

	// Stream the XML; <w:t> holds text runs, <w:p> ends a paragraph.
	var b strings.Builder
	decoder := xml.NewDecoder(doc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// legacyDocText scavenges printable character runs from the binary .doc
// container. Crude, but enough context for the model to work with.
func legacyDocText(data []byte) string {
	var b strings.Builder
	var run []rune
	for _, r := range string(data) {
		if unicode.IsPrint(r) && r != unicode.ReplacementChar {
			run = append(run, r)
			continue
		}
		if len(run) >= 4 {
			b.WriteString(string(run))
			b.WriteString("\n")
		}
		run = run[:0]
	}
	if len(run) >= 4 {
		b.WriteString(string(run))
	}
	return strings.TrimSpace(b.String())
}
