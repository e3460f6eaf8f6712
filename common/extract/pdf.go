package extract

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

func (e *Extractor) pdfText(ctx context.Context, fileName string, data []byte) string {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.WarnContext(ctx, "pdf parse failed, substituting placeholder",
			"file_name", fileName,
			"error", err)
		return placeholder(fileName, "could not parse PDF")
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		slog.WarnContext(ctx, "pdf text extraction failed, substituting placeholder",
			"file_name", fileName,
			"error", err)
		return placeholder(fileName, "could not extract PDF text")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return placeholder(fileName, "could not read PDF text")
	}
	return buf.String()
}
