package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"hivechat/internal/domain"
)

// SendFunc posts one uploaded attachment as a message.
type SendFunc func(ctx context.Context, content string, kind domain.ContentKind) error

// Pipeline uploads draft assets and sends one message per asset.
type Pipeline struct {
	objects  ObjectStore
	media    MediaStore
	cropper  Cropper
	maxBytes int64
	log      zerolog.Logger
}

type Option func(*Pipeline)

func WithObjectStore(s ObjectStore) Option { return func(p *Pipeline) { p.objects = s } }
func WithMediaStore(s MediaStore) Option   { return func(p *Pipeline) { p.media = s } }
func WithCropper(c Cropper) Option         { return func(p *Pipeline) { p.cropper = c } }

// WithMaxBytes rejects assets larger than n before upload. Zero disables the check.
func WithMaxBytes(n int64) Option { return func(p *Pipeline) { p.maxBytes = n } }

func NewPipeline(log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Prepare returns the blobs that will be uploaded for the draft, one per
// asset and in the same order. Non-GIF images go through the cropper.
func (p *Pipeline) Prepare(d *Draft) ([]Asset, error) {
	out := make([]Asset, 0, d.Len())
	for _, a := range d.assets {
		prepared, err := p.prepare(a)
		if err != nil {
			return nil, err
		}
		out = append(out, prepared)
	}
	return out, nil
}

func (p *Pipeline) prepare(a Asset) (Asset, error) {
	if p.maxBytes > 0 && int64(len(a.Data)) > p.maxBytes {
		return Asset{}, fmt.Errorf("attachment %q is %d bytes, limit %d: %w", a.Filename, len(a.Data), p.maxBytes, domain.ErrInvalidInput)
	}
	if a.Kind() != domain.KindImage || a.IsGIF() || p.cropper == nil {
		return a, nil
	}
	return p.cropper.Crop(a)
}

func (p *Pipeline) upload(ctx context.Context, a Asset) (string, domain.ContentKind, error) {
	kind := a.Kind()
	if kind == domain.KindFile {
		if p.objects == nil {
			return "", kind, ErrStoreNotConfigured
		}
		u, err := p.objects.PutFile(ctx, a)
		return u, kind, err
	}
	if p.media == nil {
		return "", kind, ErrStoreNotConfigured
	}
	u, err := p.media.Upload(ctx, a)
	return u, kind, err
}

// Send uploads and sends the draft's assets one at a time in selection
// order. Assets that fail stay in the draft so the caller can retry; the
// returned error joins every failure. A recording's capture is released once
// the draft is empty.
func (p *Pipeline) Send(ctx context.Context, d *Draft, send SendFunc) error {
	if d == nil || d.Len() == 0 {
		return ErrEmptyDraft
	}

	var (
		failed []Asset
		errs   []error
	)
	for i, a := range d.assets {
		if err := ctx.Err(); err != nil {
			failed = append(failed, d.assets[i:]...)
			errs = append(errs, err)
			break
		}
		if err := p.sendOne(ctx, a, send); err != nil {
			p.log.Warn().Err(err).Str("file", a.Filename).Msg("attachment not sent")
			failed = append(failed, a)
			errs = append(errs, err)
			continue
		}
		p.log.Debug().Str("file", a.Filename).Str("mode", d.mode.String()).Msg("attachment sent")
	}

	d.assets = failed
	if len(failed) == 0 {
		if err := d.release(); err != nil {
			p.log.Warn().Err(err).Msg("release capture")
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) sendOne(ctx context.Context, a Asset, send SendFunc) error {
	prepared, err := p.prepare(a)
	if err != nil {
		return err
	}
	u, kind, err := p.upload(ctx, prepared)
	if err != nil {
		return fmt.Errorf("upload %q: %w", a.Filename, err)
	}
	if err := send(ctx, u, kind); err != nil {
		return fmt.Errorf("send %q: %w", a.Filename, err)
	}
	return nil
}
