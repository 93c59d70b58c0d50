package domain

import (
	"net/url"
	"path"
	"strings"
)

// ContentKind tags what a message's content stands for.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
	KindAudio ContentKind = "audio"
	KindFile  ContentKind = "file"
)

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindFile:
		return true
	}
	return false
}

// IsAttachment is true for every kind whose content is a storage URL.
func (k ContentKind) IsAttachment() bool {
	return k.Valid() && k != KindText
}

// FileNameParam is the query parameter carrying an attachment's original name.
const FileNameParam = "filename"

var audioExts = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".ogg": {}, ".oga": {}, ".m4a": {},
	".aac": {}, ".weba": {}, ".opus": {}, ".flac": {},
}

// Patterns describes the URL shapes produced by the two attachment stores.
// It is only consulted for messages that arrive without an explicit kind.
type Patterns struct {
	MediaHost        string
	ObjectHostSuffix string
}

// DefaultPatterns matches Cloudinary delivery URLs and S3 virtual-hosted URLs.
func DefaultPatterns() Patterns {
	return Patterns{
		MediaHost:        "res.cloudinary.com",
		ObjectHostSuffix: ".amazonaws.com",
	}
}

// Classify infers the kind of a legacy content string.
func (p Patterns) Classify(content string) ContentKind {
	content = strings.TrimSpace(content)
	if content == "" || strings.ContainsAny(content, " \n\t") {
		return KindText
	}
	u, err := url.Parse(content)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return KindText
	}
	host := strings.ToLower(u.Hostname())

	if p.MediaHost != "" && (host == p.MediaHost || strings.HasSuffix(host, "."+p.MediaHost)) {
		switch {
		case strings.Contains(u.Path, "/image/upload/"):
			return KindImage
		case strings.Contains(u.Path, "/video/upload/"):
			if _, ok := audioExts[strings.ToLower(path.Ext(u.Path))]; ok {
				return KindAudio
			}
			return KindVideo
		}
		return KindText
	}
	if p.ObjectHostSuffix != "" && strings.HasSuffix(host, p.ObjectHostSuffix) {
		return KindFile
	}
	return KindText
}

// Normalize assigns a kind to m when the sender did not provide one.
func (p Patterns) Normalize(m *Message) {
	if m == nil || m.Kind.Valid() {
		return
	}
	m.Kind = p.Classify(m.Content)
}

// FileName returns the original file name embedded in an attachment URL,
// falling back to the last path segment.
func FileName(content string) string {
	u, err := url.Parse(strings.TrimSpace(content))
	if err != nil {
		return ""
	}
	if name := u.Query().Get(FileNameParam); name != "" {
		return name
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
