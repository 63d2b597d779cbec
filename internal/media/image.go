package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type normalized struct {
	data        []byte
	ext         string
	contentType string
	width       int
	height      int
}

// fitWithin scales (w,h) down to fit a limit×limit box, keeping the ratio.
// Images already inside the box are returned unchanged.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

var errTooManyPixels = errors.New("image dimensions too large")

func normalize(raw []byte, mime string, maxDim, maxPixels, quality int) (*normalized, error) {
	// 先读头部尺寸，解码器会按声明的尺寸一次性分配像素缓冲
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, errTooManyPixels
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxDim)
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	out := &normalized{width: w, height: h}
	if mime == "image/png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		out.ext, out.contentType = "png", "image/png"
	} else {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		out.ext, out.contentType = "jpg", "image/jpeg"
	}
	out.data = buf.Bytes()
	return out, nil
}
