// Package extract turns uploaded documents into plain text for providers
// that cannot read attachment URLs themselves. Extraction never fails
// outward: any network or parse error degrades to a bracketed placeholder so
// the conversation proceeds without the file's content.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxFileBytes caps downloads. Larger files degrade to a placeholder.
const maxFileBytes = 50 << 20

type Extractor struct {
	httpClient *http.Client
}

// New returns an Extractor backed by the given HTTP client. A nil client
// gets a 60 second timeout default.
func New(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Extractor{httpClient: httpClient}
}

// Extract downloads the file once (no retry) and returns its text content,
// dispatched by mime type. On any failure the return value is a placeholder
// embedding the file name and a short reason.
func (e *Extractor) Extract(ctx context.Context, url, fileName, mimeType string) string {
	data, err := e.fetch(ctx, url)
	if err != nil {
		slog.WarnContext(ctx, "file fetch failed, substituting placeholder",
			"file_name", fileName,
			"error", err)
		return placeholder(fileName, fmt.Sprintf("download failed: %v", err))
	}

	switch {
	case mimeType == "application/pdf":
		return e.pdfText(ctx, fileName, data)

	case isWordMIME(mimeType):
		return e.wordText(ctx, fileName, mimeType, data)

	case isSpreadsheetMIME(mimeType):
		return e.spreadsheetText(ctx, fileName, data)

	case isPlainTextMIME(mimeType):
		return string(data)

	default:
		return placeholder(fileName, fmt.Sprintf("extraction is not supported for %s", mimeType))
	}
}

func (e *Extractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileBytes)
	}
	return data, nil
}

func isWordMIME(mimeType string) bool {
	return mimeType == "application/msword" ||
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func isSpreadsheetMIME(mimeType string) bool {
	return mimeType == "application/vnd.ms-excel" ||
		mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func isPlainTextMIME(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/plain"),
		strings.HasPrefix(mimeType, "text/markdown"),
		strings.HasPrefix(mimeType, "text/csv"),
		strings.HasPrefix(mimeType, "application/json"):
		return true
	}
	return false
}

func placeholder(fileName, reason string) string {
	return fmt.Sprintf("[Could not extract content from %s: %s]", fileName, reason)
}
