package render_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivechat/internal/domain"
	"hivechat/internal/render"
)

func newRenderer(size int) *render.Renderer {
	return render.New(render.NewLinkTable(size), domain.DefaultPatterns(), "https://hive.test/profile/", zerolog.Nop())
}

func TestRenderImageNeverAnchor(t *testing.T) {
	r := newRenderer(16)
	src := "https://res.cloudinary.com/demo/image/upload/v1/cat.jpg"

	for _, kind := range []domain.ContentKind{domain.KindImage, ""} {
		out, err := r.Render(&domain.Message{ID: "m1", ChatID: "c1", Content: src, Kind: kind})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "<img"), out)
		assert.Contains(t, out, `src="`+src+`"`)
		assert.NotContains(t, out, "<a")
	}
}

func TestRenderMedia(t *testing.T) {
	r := newRenderer(16)

	out, err := r.Render(&domain.Message{ID: "m1", Content: "https://res.cloudinary.com/d/video/upload/v1/a.mp4", Kind: domain.KindVideo})
	require.NoError(t, err)
	assert.Contains(t, out, "<video")
	assert.Contains(t, out, "controls")

	out, err = r.Render(&domain.Message{ID: "m2", Content: "https://res.cloudinary.com/d/video/upload/v1/a.mp3", Kind: domain.KindAudio})
	require.NoError(t, err)
	assert.Contains(t, out, "<audio")
}

func TestRenderFileUsesToken(t *testing.T) {
	r := newRenderer(16)
	src := "https://b.s3.us-east-1.amazonaws.com/chat/1-q.pdf?filename=q3%20report.pdf"

	out, err := r.Render(&domain.Message{ID: "m7", ChatID: "c1", Content: src, Kind: domain.KindFile})
	require.NoError(t, err)
	assert.Contains(t, out, `data-link="m7:0"`)
	assert.Contains(t, out, "q3 report.pdf")
	assert.NotContains(t, out, "amazonaws")

	target, ok := r.ResolveLink("m7:0")
	require.True(t, ok)
	assert.Equal(t, src, target)
}

func TestRenderTextLinksAndMentions(t *testing.T) {
	r := newRenderer(16)
	msg := &domain.Message{
		ID:      "m3",
		ChatID:  "c1",
		Kind:    domain.KindText,
		Content: "hey @alice see https://example.com/x?y=1. and www.hive.io\nmail bob@example.com <b>",
	}

	out, err := r.Render(msg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `<div class="message-text">`), out)
	assert.NotContains(t, out, `href="http`)
	assert.Contains(t, out, `<a class="mention" href="#" data-link="m3:0">@alice</a>`)
	assert.Contains(t, out, `<a class="link" href="#" data-link="m3:1">https://example.com/x?y=1</a>. and `)
	assert.Contains(t, out, `data-link="m3:2">www.hive.io</a>`)
	assert.Contains(t, out, "<br/>")
	assert.Contains(t, out, "bob@example.com &lt;b&gt;")

	profile, ok := r.ResolveLink("m3:0")
	require.True(t, ok)
	assert.Equal(t, "https://hive.test/profile/alice", profile)

	link, _ := r.ResolveLink("m3:1")
	assert.Equal(t, "https://example.com/x?y=1", link)

	www, _ := r.ResolveLink("m3:2")
	assert.Equal(t, "https://www.hive.io", www)

	_, ok = r.ResolveLink("m3:3")
	assert.False(t, ok)
}

func TestRenderMentionBoundaries(t *testing.T) {
	r := newRenderer(16)
	msg := &domain.Message{
		ID:      "m4",
		ChatID:  "c1",
		Kind:    domain.KindText,
		Content: "thanks @bob. (@alice) mail bob@example.com",
	}

	out, err := r.Render(msg)
	require.NoError(t, err)
	assert.Contains(t, out, `data-link="m4:0">@bob</a>. (`)
	assert.Contains(t, out, `(<a class="mention" href="#" data-link="m4:1">@alice</a>)`)
	assert.Contains(t, out, "bob@example.com")

	bob, ok := r.ResolveLink("m4:0")
	require.True(t, ok)
	assert.Equal(t, "https://hive.test/profile/bob", bob)
	alice, ok := r.ResolveLink("m4:1")
	require.True(t, ok)
	assert.Equal(t, "https://hive.test/profile/alice", alice)
	_, ok = r.ResolveLink("m4:2")
	assert.False(t, ok)
}

func TestRenderIsStablePerMessage(t *testing.T) {
	r := newRenderer(16)
	msg := &domain.Message{ID: "m1", ChatID: "c1", Content: "https://a.example"}

	first, err := r.Render(msg)
	require.NoError(t, err)
	second, err := r.Render(msg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.Links().Len())
}

func TestLinkTableBoundedAndForget(t *testing.T) {
	lt := render.NewLinkTable(2)
	lt.Put("c1", "m1", 0, "https://one")
	lt.Put("c1", "m2", 0, "https://two")
	lt.Put("c2", "m3", 0, "https://three")

	assert.Equal(t, 2, lt.Len())
	_, ok := lt.Resolve("m1:0")
	assert.False(t, ok, "oldest entry evicted")

	lt.ForgetChat("c1")
	_, ok = lt.Resolve("m2:0")
	assert.False(t, ok)
	v, ok := lt.Resolve("m3:0")
	assert.True(t, ok)
	assert.Equal(t, "https://three", v)
	assert.Equal(t, 1, lt.Len())
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "a b.txt", render.DownloadName(&domain.Message{ID: "m", Content: "https://x.s3.amazonaws.com/k/1-a.txt?filename=a%20b.txt"}))
	assert.Equal(t, "m", render.DownloadName(&domain.Message{ID: "m", Content: "https://x.s3.amazonaws.com/"}))
}

func TestClipboard(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/missing.jpg" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpg.Bytes())
	}))
	defer srv.Close()

	r := newRenderer(16)

	t.Run("ImageBecomesPNG", func(t *testing.T) {
		clip := r.Clipboard(testContext(t), srv.Client(), &domain.Message{ID: "m1", Content: srv.URL + "/cat.jpg", Kind: domain.KindImage})
		assert.Equal(t, "image/png", clip.MIME)
		decoded, err := png.Decode(bytes.NewReader(clip.Data))
		require.NoError(t, err)
		assert.Equal(t, 4, decoded.Bounds().Dx())
	})

	t.Run("FetchFailureFallsBackToText", func(t *testing.T) {
		src := srv.URL + "/missing.jpg"
		clip := r.Clipboard(testContext(t), srv.Client(), &domain.Message{ID: "m2", Content: src, Kind: domain.KindImage})
		assert.Equal(t, render.TextClip(src), clip)
	})

	t.Run("TextIsText", func(t *testing.T) {
		clip := r.Clipboard(testContext(t), srv.Client(), &domain.Message{ID: "m3", Content: "hello", Kind: domain.KindText})
		assert.Equal(t, "hello", string(clip.Data))
	})
}
