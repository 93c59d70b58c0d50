// Package attachment normalizes chat attachments (files, images, videos,
// voice recordings) into one upload-then-send flow.
package attachment

import (
	"errors"
	"fmt"
	"image"
	"path"
	"strings"
	"sync"

	"hivechat/internal/domain"
)

// Asset is one selected attachment before upload.
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
	// Crop is the user's selection for images; nil means the centered square.
	Crop *image.Rectangle
}

// Kind is the message kind an asset becomes once uploaded.
func (a Asset) Kind() domain.ContentKind {
	switch {
	case strings.HasPrefix(a.ContentType, "image/"):
		return domain.KindImage
	case strings.HasPrefix(a.ContentType, "video/"):
		return domain.KindVideo
	case strings.HasPrefix(a.ContentType, "audio/"):
		return domain.KindAudio
	}
	return domain.KindFile
}

// IsGIF reports whether the asset is an animated-capable GIF, which is never
// cropped.
func (a Asset) IsGIF() bool {
	return a.ContentType == "image/gif" || strings.EqualFold(path.Ext(a.Filename), ".gif")
}

// Mode is what the user selected.
type Mode int

const (
	ModeFile Mode = iota + 1
	ModeMedia
	ModeRecording
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeMedia:
		return "media"
	case ModeRecording:
		return "recording"
	}
	return "unknown"
}

// Capture is a device stream (microphone, camera) that has to be released
// once its output is consumed or discarded.
type Capture interface {
	Stop() error
}

var ErrEmptyDraft = errors.New("attachment: nothing selected")

// Draft holds assets between selection and a successful send.
type Draft struct {
	mode    Mode
	assets  []Asset
	capture Capture

	releaseOnce sync.Once
}

// NewFileDraft selects a single arbitrary file.
func NewFileDraft(a Asset) (*Draft, error) {
	if len(a.Data) == 0 {
		return nil, ErrEmptyDraft
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	return &Draft{mode: ModeFile, assets: []Asset{a}}, nil
}

// NewMediaDraft selects one or more images or videos, kept in selection order.
func NewMediaDraft(assets ...Asset) (*Draft, error) {
	if len(assets) == 0 {
		return nil, ErrEmptyDraft
	}
	for _, a := range assets {
		k := a.Kind()
		if k != domain.KindImage && k != domain.KindVideo {
			return nil, fmt.Errorf("attachment %q is %s, want image or video: %w", a.Filename, a.ContentType, domain.ErrInvalidInput)
		}
		if len(a.Data) == 0 {
			return nil, fmt.Errorf("attachment %q is empty: %w", a.Filename, domain.ErrInvalidInput)
		}
	}
	return &Draft{mode: ModeMedia, assets: append([]Asset(nil), assets...)}, nil
}

// NewRecordingDraft selects one recorded audio blob. capture, if non-nil, is
// stopped when the draft is sent or cancelled.
func NewRecordingDraft(a Asset, capture Capture) (*Draft, error) {
	if a.Kind() != domain.KindAudio {
		return nil, fmt.Errorf("recording %q is %s, want audio: %w", a.Filename, a.ContentType, domain.ErrInvalidInput)
	}
	if len(a.Data) == 0 {
		return nil, ErrEmptyDraft
	}
	return &Draft{mode: ModeRecording, assets: []Asset{a}, capture: capture}, nil
}

func (d *Draft) Mode() Mode { return d.mode }

// Assets returns the assets still waiting to be sent.
func (d *Draft) Assets() []Asset {
	return append([]Asset(nil), d.assets...)
}

func (d *Draft) Len() int { return len(d.assets) }

// Cancel discards the draft and releases any capture device.
func (d *Draft) Cancel() error {
	d.assets = nil
	return d.release()
}

func (d *Draft) release() error {
	var err error
	d.releaseOnce.Do(func() {
		if d.capture != nil {
			err = d.capture.Stop()
		}
	})
	return err
}
