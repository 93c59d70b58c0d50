package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/webp"

	"hivechat/internal/domain"
)

const maxClipboardImageBytes = 20 << 20

// Clip is a clipboard payload.
type Clip struct {
	MIME string
	Data []byte
}

// TextClip wraps s as a text/plain clip.
func TextClip(s string) Clip {
	return Clip{MIME: "text/plain; charset=utf-8", Data: []byte(s)}
}

// Clipboard returns what copying m should place on the clipboard. Images are
// fetched and re-encoded as PNG; when that fails, or for any other kind, the
// plain text is used.
func (r *Renderer) Clipboard(ctx context.Context, hc *http.Client, m *domain.Message) Clip {
	plain := TextClip(PlainText(m))
	if m == nil {
		return plain
	}
	kind := m.Kind
	if !kind.Valid() {
		kind = r.patterns.Classify(m.Content)
	}
	if kind != domain.KindImage {
		return plain
	}

	data, err := fetchPNG(ctx, hc, PlainText(m))
	if err != nil {
		r.log.Warn().Err(err).Str("message_id", m.ID).Msg("copy image as text")
		return plain
	}
	return Clip{MIME: "image/png", Data: data}
}

func fetchPNG(ctx context.Context, hc *http.Client, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: http %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxClipboardImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
