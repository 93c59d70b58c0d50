package attachment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Cropper turns a selected image into the blob that gets uploaded.
type Cropper interface {
	Crop(a Asset) (Asset, error)
}

// CenterCropper crops to the asset's selection (or the centered square) and
// scales the result to Size x Size JPEG.
type CenterCropper struct {
	Size    int
	Quality int
}

func (c CenterCropper) Crop(a Asset) (Asset, error) {
	src, _, err := image.Decode(bytes.NewReader(a.Data))
	if err != nil {
		return Asset{}, fmt.Errorf("decode %q: %w", a.Filename, err)
	}

	region := centeredSquare(src.Bounds())
	if a.Crop != nil {
		if r := a.Crop.Intersect(src.Bounds()); !r.Empty() {
			region = r
		}
	}

	size := c.Size
	if size <= 0 {
		size = 512
	}
	quality := c.Quality
	if quality <= 0 {
		quality = 90
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, region, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return Asset{}, fmt.Errorf("encode %q: %w", a.Filename, err)
	}
	return Asset{
		Filename:    strings.TrimSuffix(a.Filename, path.Ext(a.Filename)) + ".jpg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func centeredSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
