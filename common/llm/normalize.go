package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"parley.app/server/common/logger"
)

// maxInlineImageBytes caps images fetched for base64 inlining. Oversized
// images are skipped, not fatal.
const maxInlineImageBytes = 20 << 20

// ImageFetcher downloads an image for providers that require base64 inline
// data. A failed fetch skips that one image only.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (data []byte, mimeType string, err error)
}

type httpImageFetcher struct {
	client *http.Client
}

// NewImageFetcher returns an ImageFetcher backed by the given HTTP client.
// A nil client gets a 30 second timeout default.
func NewImageFetcher(client *http.Client) ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpImageFetcher{client: client}
}

func (f *httpImageFetcher) FetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}
	if len(data) > maxInlineImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxInlineImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}

// Normalizer transforms a provider-agnostic turn sequence into the payload
// one specific provider expects. Strategy selection follows the provider
// descriptor: server-side extraction for providers that cannot fetch URLs,
// native upload for providers with a file store, plain-text URL notes
// everywhere else.
type Normalizer struct {
	cfg       Config
	extractor Extractor
	fetcher   ImageFetcher
}

func NewNormalizer(cfg Config, extractor Extractor, fetcher ImageFetcher) *Normalizer {
	if fetcher == nil {
		fetcher = NewImageFetcher(nil)
	}
	return &Normalizer{cfg: cfg, extractor: extractor, fetcher: fetcher}
}

// Normalize builds the provider payload for the outgoing turn sequence.
// Individually malformed images and unsupported files degrade locally and
// never fail the request; an unknown or unconfigured provider does.
func (n *Normalizer) Normalize(ctx context.Context, turns []Turn, providerID, modelID string) (*Payload, error) {
	desc, ok := DescriptorFor(providerID)
	if !ok || !n.cfg.Configured(providerID) {
		return nil, fmt.Errorf("normalize for %q: %w", providerID, ErrUnknownProvider)
	}

	payload := &Payload{
		Provider: providerID,
		Model:    modelID,
	}

	var files []FileRef
	for _, t := range turns {
		files = append(files, t.Files...)
	}

	// Appending into the caller's slice could clobber its spare capacity;
	// synthesized system turns go into a private copy.
	working := make([]Turn, len(turns), len(turns)+1)
	copy(working, turns)
	switch {
	case len(files) > 0 && !desc.CanFetchURLs:
		// The provider cannot download attachment URLs itself; extract all
		// file content server-side and hand it over as one synthesized
		// system turn.
		text := n.extractAll(ctx, files)
		working = append(working, Turn{Role: RoleSystem, Content: text})

	case len(files) > 0 && desc.SupportsNativeFileUpload:
		// Files go to the provider's own file store; the adapter uploads
		// them and merges references into a single completion call.
		payload.UploadFiles = files

	case len(files) > 0:
		working = append(working, Turn{Role: RoleSystem, Content: fileURLNotes(files)})
	}

	for _, t := range working {
		msg := Message{Role: t.Role}

		if t.Content != "" {
			msg.Parts = append(msg.Parts, Part{Type: PartText, Text: t.Content})
		}

		for _, img := range t.Images {
			part, ok := n.imagePart(ctx, desc, img)
			if !ok {
				continue
			}
			msg.Parts = append(msg.Parts, part)
		}

		if len(msg.Parts) == 0 {
			continue
		}

		if t.Role == RoleSystem && desc.SeparateSystemField {
			payload.System = append(payload.System, msg.Text())
			continue
		}

		payload.Messages = append(payload.Messages, msg)
	}

	return payload, nil
}

// imagePart encodes one image per the provider's convention. Returns false
// when the image must be skipped; skipping is logged, never fatal.
func (n *Normalizer) imagePart(ctx context.Context, desc Descriptor, img ImageRef) (Part, bool) {
	switch {
	case desc.InlinesImageData:
		data, mimeType, err := n.fetcher.FetchImage(ctx, img.URL)
		if err != nil {
			slog.WarnContext(ctx, "skipping image: fetch for inline encoding failed",
				"provider", desc.ID,
				"url", img.URL,
				"error", err)
			return Part{}, false
		}
		if img.MIMEType != "" {
			mimeType = img.MIMEType
		}
		return Part{
			Type:     PartImageData,
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}, true

	case desc.SupportsImageURLReference:
		if !strings.HasPrefix(img.URL, "https://") {
			slog.WarnContext(ctx, "skipping image: only https URLs are accepted",
				"provider", desc.ID,
				"url", img.URL)
			return Part{}, false
		}
		return Part{Type: PartImageURL, URL: img.URL, Detail: "auto"}, true

	default:
		slog.WarnContext(ctx, "skipping image: provider is text-only",
			"provider", desc.ID,
			"url", img.URL)
		return Part{}, false
	}
}

// extractAll runs the extractor over every file concurrently. Extraction
// failures are independent and already degraded to placeholders by the
// extractor, so no error handling is needed here. Output order follows the
// attachment order.
func (n *Normalizer) extractAll(ctx context.Context, files []FileRef) string {
	contents := make([]string, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f FileRef) {
			defer wg.Done()
			contents[i] = n.extractor.Extract(ctx, f.URL, f.FileName, f.MIMEType)
		}(i, f)
	}
	wg.Wait()

	for i, f := range files {
		slog.DebugContext(ctx, "extracted file content",
			"file_name", f.FileName,
			"content", logger.Truncate(contents[i], 200))
	}

	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== FILE: %s (%s) ===\n%s\n=== END FILE ===", f.FileName, f.MIMEType, contents[i])
	}
	return b.String()
}

// fileURLNotes describes attachments for providers that can dereference URLs
// on their own; no server-side extraction happens on this path.
func fileURLNotes(files []FileRef) string {
	var b strings.Builder
	b.WriteString("The user attached the following files. You may fetch them by URL if needed:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.FileName, f.MIMEType, f.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
