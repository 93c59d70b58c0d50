// Package render turns message content into display HTML and back into
// copyable payloads.
package render

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"hivechat/internal/domain"
)

var (
	linkOrMention = regexp.MustCompile(`https?://[^\s<>"']+|www\.[^\s<>"']+|@[A-Za-z0-9_][A-Za-z0-9_.]*`)
	trailingPunct = ".,;:!?)]}'\""
	// mentionOpeners may directly precede an @mention.
	mentionOpeners = "([{'\""
)

// Renderer renders messages. It owns the link table its tokens point into.
type Renderer struct {
	links      *LinkTable
	patterns   domain.Patterns
	profileURL string
	log        zerolog.Logger
}

func New(links *LinkTable, patterns domain.Patterns, profileURL string, log zerolog.Logger) *Renderer {
	return &Renderer{
		links:      links,
		patterns:   patterns,
		profileURL: profileURL,
		log:        log,
	}
}

// Links exposes the renderer's link table.
func (r *Renderer) Links() *LinkTable {
	return r.links
}

// ResolveLink is the click path for rendered anchors.
func (r *Renderer) ResolveLink(token string) (string, bool) {
	return r.links.Resolve(token)
}

// Render produces the HTML fragment for m.
func (r *Renderer) Render(m *domain.Message) (string, error) {
	if m == nil {
		return "", fmt.Errorf("render: %w", domain.ErrInvalidInput)
	}
	kind := m.Kind
	if !kind.Valid() {
		kind = r.patterns.Classify(m.Content)
	}
	src := strings.TrimSpace(m.Content)

	var node *html.Node
	switch kind {
	case domain.KindImage:
		node = element(atom.Img, "message-image",
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "alt", Val: "image"},
			html.Attribute{Key: "loading", Val: "lazy"})
	case domain.KindVideo:
		node = element(atom.Video, "message-video",
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "controls"},
			html.Attribute{Key: "preload", Val: "metadata"})
	case domain.KindAudio:
		node = element(atom.Audio, "message-audio",
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "controls"})
	case domain.KindFile:
		tok := r.links.Put(m.ChatID, m.ID, 0, src)
		node = element(atom.Button, "message-file",
			html.Attribute{Key: "type", Val: "button"},
			html.Attribute{Key: "data-action", Val: "download"},
			html.Attribute{Key: "data-link", Val: tok})
		name := domain.FileName(src)
		if name == "" {
			name = "download"
		}
		node.AppendChild(text(name))
	default:
		node = r.renderText(m)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", fmt.Errorf("render message %s: %w", m.ID, err)
	}
	return buf.String(), nil
}

func (r *Renderer) renderText(m *domain.Message) *html.Node {
	root := element(atom.Div, "message-text")
	lines := strings.Split(m.Content, "\n")
	n := 0
	for i, line := range lines {
		if i > 0 {
			root.AppendChild(element(atom.Br, ""))
		}
		n = r.appendLine(root, m, line, n)
	}
	return root
}

// appendLine splits line into text, link and mention nodes. n is the next
// link index for the message; the updated value is returned.
func (r *Renderer) appendLine(root *html.Node, m *domain.Message, line string, n int) int {
	last := 0
	for _, loc := range linkOrMention.FindAllStringIndex(line, -1) {
		start, end := loc[0], loc[1]
		match := line[start:end]

		if match[0] == '@' {
			if start > 0 && !isSpace(line[start-1]) && !strings.ContainsRune(mentionOpeners, rune(line[start-1])) {
				continue
			}
			match = strings.TrimRight(match, ".")
		} else {
			match = strings.TrimRight(match, trailingPunct)
		}
		end = start + len(match)
		if match == "" || match == "@" {
			continue
		}

		if start > last {
			root.AppendChild(text(line[last:start]))
		}
		var target, class string
		if match[0] == '@' {
			target = r.profileURL + url.PathEscape(match[1:])
			class = "mention"
		} else {
			target = match
			if strings.HasPrefix(target, "www.") {
				target = "https://" + target
			}
			class = "link"
		}
		tok := r.links.Put(m.ChatID, m.ID, n, target)
		n++
		a := element(atom.A, class,
			html.Attribute{Key: "href", Val: "#"},
			html.Attribute{Key: "data-link", Val: tok})
		a.AppendChild(text(match))
		root.AppendChild(a)
		last = end
	}
	if last < len(line) {
		root.AppendChild(text(line[last:]))
	}
	return n
}

// PlainText is the copy payload of a message: its text, or the storage URL
// of an attachment.
func PlainText(m *domain.Message) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Content)
}

// DownloadName is the file name offered when saving an attachment.
func DownloadName(m *domain.Message) string {
	if m == nil {
		return ""
	}
	if name := domain.FileName(m.Content); name != "" {
		return name
	}
	return m.ID
}

func element(a atom.Atom, class string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	n.Attr = append(n.Attr, attrs...)
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
